// Package main provides the entry point for the demgrid DEM catalog service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reliefmap/demgrid/internal/app"
	"github.com/reliefmap/demgrid/internal/config"
	"github.com/reliefmap/demgrid/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "demgrid",
	Short: "demgrid - DEM raster catalog and mesh service",
	Long: `demgrid manages collections of digital elevation model rasters.

It scans raster directory trees into a versioned metadata catalog, reports
catalog coverage against remote source lists, and triangulates elevation
grids into binary glTF meshes.

Features:
  - Parallel manifest generation with per-file failure isolation
  - Versioned manifest migration
  - Coverage reports joining source lists against local state
  - Heightmap triangulation with smooth per-vertex normals
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - TLS with automatic certificate management
  - Prometheus metrics`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("demgrid %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog HTTP service",
	RunE:  runServer,
}

var generateCmd = &cobra.Command{
	Use:   "generate [dataset]",
	Short: "Generate manifests for raster files",
	Long: `Generate scans a dataset directory tree and writes one manifest per
raster file. Without a dataset argument every configured dataset is
processed. Corrupt files are logged and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

var reportCmd = &cobra.Command{
	Use:   "report <dataset>",
	Short: "Report source-list coverage for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

var meshCmd = &cobra.Command{
	Use:   "mesh <dataset>",
	Short: "Build a glTF mesh for the raster covering a point",
	Args:  cobra.ExactArgs(1),
	RunE:  runMesh,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download rasters named by the source lists that are missing locally",
	RunE:  runSync,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the SQLite spatial index from the catalog",
	RunE:  runIndex,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("root", "", "catalog root directory")
	rootCmd.PersistentFlags().String("datasets", "", "dataset definitions file")

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "server host")
	serveCmd.Flags().Int("port", 8080, "server port")
	serveCmd.Flags().Bool("tls", false, "enable TLS")
	serveCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	serveCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	serveCmd.Flags().Bool("watch", false, "invalidate caches on file changes")
	serveCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Generate flags
	generateCmd.Flags().Bool("force", false, "regenerate existing manifests")
	generateCmd.Flags().Bool("delete-on-error", false, "delete corrupt rasters and their manifests")
	generateCmd.Flags().Int("workers", 0, "parallel workers (0 = one per CPU)")

	// Report flags
	reportCmd.Flags().String("bbox", "", "filter as xmin,ymin,xmax,ymax")
	reportCmd.Flags().Float64("lat", 0, "point filter latitude")
	reportCmd.Flags().Float64("lon", 0, "point filter longitude")

	// Mesh flags
	meshCmd.Flags().Float64("lat", 0, "latitude of the point of interest")
	meshCmd.Flags().Float64("lon", 0, "longitude of the point of interest")
	meshCmd.Flags().String("out", "", "output file (default: <tile>.glb)")
	_ = meshCmd.MarkFlagRequired("lat")
	_ = meshCmd.MarkFlagRequired("lon")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("catalog.root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("catalog.datasets_file", rootCmd.PersistentFlags().Lookup("datasets"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", serveCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", serveCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", serveCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("catalog.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("server.cors.allowed_origins", serveCmd.Flags().Lookup("cors"))
	_ = viper.BindPFlag("generate.workers", generateCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("generate.delete_on_error", generateCmd.Flags().Lookup("delete-on-error"))

	rootCmd.AddCommand(serveCmd, generateCmd, reportCmd, meshCmd, syncCmd, indexCmd, versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads configuration, builds the logger and wires the application.
func setup(ctx context.Context) (*app.App, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}
	return application, cfg, logger, nil
}

func runServer(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	logger.Info("starting demgrid",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
	)

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	application, cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	deleteOnError := cfg.Generate.DeleteOnError
	if cmd.Flags().Changed("delete-on-error") {
		deleteOnError, _ = cmd.Flags().GetBool("delete-on-error")
	}

	if len(args) == 1 {
		stats, err := application.Generate.Generate(ctx, args[0], force, deleteOnError)
		if err != nil {
			return err
		}
		logger.Info("done",
			"dataset", args[0],
			"generated", stats.Generated,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
		return nil
	}

	results, err := application.Generate.GenerateAll(ctx, force, deleteOnError)
	for name, stats := range results {
		logger.Info("done",
			"dataset", name,
			"generated", stats.Generated,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return err
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	application, _, _, err := setup(ctx)
	if err != nil {
		return err
	}

	dataset := args[0]

	var report domain.Report
	switch {
	case cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon"):
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		report, err = application.Catalog.GenerateReportForLocation(ctx, dataset, lat, lon)

	case cmd.Flags().Changed("bbox"):
		raw, _ := cmd.Flags().GetString("bbox")
		var box domain.BoundingBox
		if box, err = parseBBoxFlag(raw); err != nil {
			return err
		}
		report, err = application.Catalog.GenerateReport(ctx, dataset, &box)

	default:
		report, err = application.Catalog.GenerateReport(ctx, dataset, nil)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d sources, %d missing locally, %d without metadata\n",
		len(report), report.MissingCount(), report.UnindexedCount())
	return nil
}

func runMesh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	application, _, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = domain.TileCode(lat, lon) + ".glb"
	}

	mesh, err := application.Mesh.BuildForLocation(ctx, args[0], lat, lon)
	if err != nil {
		return err
	}
	if mesh == nil {
		return fmt.Errorf("raster holds no elevation data")
	}

	f, err := os.Create(out) //#nosec G304 -- output path chosen by the operator
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := application.Mesh.Export(ctx, mesh, f); err != nil {
		return err
	}

	logger.Info("mesh written",
		"file", out,
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
	)
	return nil
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// A one-shot sync needs the service even when the scheduler is off.
	viper.Set("sync.enabled", true)

	application, _, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	result, err := application.Sync.TriggerSync(ctx)
	if err != nil {
		return err
	}

	logger.Info("sync finished",
		"downloaded", result.FilesDownloaded,
		"failed", result.FilesFailed,
	)
	return nil
}

func runIndex(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	application, cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	if cfg.Catalog.IndexPath == "" {
		return fmt.Errorf("catalog.index_path is not configured")
	}

	if err := application.RebuildIndex(ctx); err != nil {
		return err
	}
	logger.Info("spatial index rebuilt", "path", cfg.Catalog.IndexPath)
	return nil
}

// parseBBoxFlag parses xmin,ymin,xmax,ymax.
func parseBBoxFlag(raw string) (domain.BoundingBox, error) {
	var xmin, ymin, xmax, ymax float64
	if _, err := fmt.Sscanf(raw, "%f,%f,%f,%f", &xmin, &ymin, &xmax, &ymax); err != nil {
		return domain.BoundingBox{}, fmt.Errorf("invalid bbox %q: expected xmin,ymin,xmax,ymax", raw)
	}
	return domain.NewBoundingBox(xmin, xmax, ymin, ymax), nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
