// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reliefmap/demgrid/internal/adapters/gltf"
	httpAdapter "github.com/reliefmap/demgrid/internal/adapters/http"
	"github.com/reliefmap/demgrid/internal/adapters/index"
	"github.com/reliefmap/demgrid/internal/adapters/manifest"
	"github.com/reliefmap/demgrid/internal/adapters/metrics"
	"github.com/reliefmap/demgrid/internal/adapters/raster"
	"github.com/reliefmap/demgrid/internal/adapters/sources"
	"github.com/reliefmap/demgrid/internal/adapters/storage"
	tlsAdapter "github.com/reliefmap/demgrid/internal/adapters/tls"
	"github.com/reliefmap/demgrid/internal/adapters/watcher"
	"github.com/reliefmap/demgrid/internal/application"
	"github.com/reliefmap/demgrid/internal/config"
	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Datasets   []domain.Dataset
	Storage    output.ObjectStorage
	Store      *manifest.Store
	Catalog    *application.CatalogService
	Generate   *application.GenerateService
	Mesh       *application.MeshService
	Sync       *application.SyncService
	Health     *application.HealthService
	HTTPServer *httpAdapter.Server
	TLSServer  *tlsAdapter.Server
	Watcher    *watcher.Watcher
	Metrics    *metrics.Collector
	Index      *index.SQLiteIndex
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	datasets, err := config.LoadDatasets(cfg.Catalog.DatasetsFile)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	app.Datasets = datasets

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("demgrid")
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = &output.NoOpMetrics{}
	}

	// Initialize storage adapter
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	// Initialize manifest store
	app.Store = manifest.NewStore(cfg.Catalog.Root, logger)

	// Initialize source catalog
	srcCatalog := sources.NewJSONIndex(app.Storage, logger)

	// Initialize catalog service
	app.Catalog = application.NewCatalogService(
		datasets,
		cfg.Catalog.Root,
		app.Store,
		srcCatalog,
		metricsCollector,
		logger,
	)

	// Initialize generation pipeline
	app.Generate = application.NewGenerateService(
		app.Catalog,
		app.Store,
		raster.ForFormat,
		metricsCollector,
		logger,
		cfg.Generate.Workers,
	)

	// Initialize mesh service
	app.Mesh = application.NewMeshService(
		app.Catalog,
		raster.ForFormat,
		gltf.NewWriter(),
		metricsCollector,
		logger,
	)

	// Initialize health service
	app.Health = application.NewHealthService(app.Catalog)

	// Initialize sync service if enabled
	if cfg.Sync.Enabled {
		app.Sync = application.NewSyncService(
			app.Catalog,
			app.Generate,
			srcCatalog,
			app.Storage,
			metricsCollector,
			cfg.Sync.Interval,
			logger,
		)
	}

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.Catalog,
		app.Mesh,
		app.Health,
		app.Sync,
		logger,
	)

	if app.Metrics != nil {
		router := app.HTTPServer.Router()
		router.Use(app.Metrics.Middleware)
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize spatial index if configured
	if cfg.Catalog.IndexPath != "" {
		idx, err := index.Open(cfg.Catalog.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("opening spatial index: %w", err)
		}
		app.Index = idx
	}

	// Initialize file watcher for cache invalidation
	if cfg.Catalog.Watch {
		paths := make([]string, 0, len(datasets))
		exts := make([]string, 0, len(datasets))
		for _, ds := range datasets {
			paths = append(paths, app.Catalog.ResolveLocalPath(ds.Name))
			exts = append(exts, ds.Extension)
		}
		w, err := watcher.New(
			watcher.Config{
				Paths:      paths,
				Extensions: exts,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components and serves until the listener
// stops.
func (a *App) Start(ctx context.Context) error {
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.Sync != nil {
		a.Sync.Start(ctx)
	}

	if a.Index != nil {
		if err := a.RebuildIndex(ctx); err != nil {
			a.Logger.Warn("failed to rebuild spatial index", "error", err)
		}
	}

	if a.Config.TLS.Enabled && a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.Sync != nil {
		a.Sync.Stop()
	}

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}
	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	}

	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			a.Logger.Error("spatial index close error", "error", err)
		}
	}

	return nil
}

// RebuildIndex loads every dataset catalog and rewrites the SQLite spatial
// index from it.
func (a *App) RebuildIndex(ctx context.Context) error {
	if a.Index == nil {
		return fmt.Errorf("no spatial index configured")
	}

	for _, ds := range a.Datasets {
		records, err := a.Catalog.LoadManifest(ctx, ds.Name, false)
		if err != nil {
			return err
		}
		if err := a.Index.Rebuild(ctx, ds.Name, records); err != nil {
			return err
		}
		a.Logger.Info("spatial index rebuilt", "dataset", ds.Name, "records", len(records))
	}
	return nil
}

// handleFileEvent invalidates catalog state when raster or manifest files
// change on disk.
func (a *App) handleFileEvent(_ context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())
	a.Catalog.InvalidatePath(event.Path)
	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Local.Path, ""), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
