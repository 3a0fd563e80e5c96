package application

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/reliefmap/demgrid/internal/ports/output"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	FilesDownloaded int       `json:"files_downloaded"`
	FilesFailed     int       `json:"files_failed"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService downloads raster files named by the source lists that are
// missing locally, regenerates their manifests and invalidates the catalog
// cache. It runs periodically and can be triggered over the API with a
// cooldown.
type SyncService struct {
	catalog  *CatalogService
	generate *GenerateService
	sources  output.SourceCatalog
	storage  output.ObjectStorage
	metrics  output.MetricsCollector
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex

	nextSync time.Time
	syncMu   sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(
	catalog *CatalogService,
	generate *GenerateService,
	sources output.SourceCatalog,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	interval time.Duration,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		catalog:  catalog,
		generate: generate,
		sources:  sources,
		storage:  storage,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Initialize to past time to allow immediate first API call
		lastAPISync: time.Now().Add(-31 * time.Second),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.doSync(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the sync service.
func (s *SyncService) Stop() {
	s.logger.Info("stopping sync service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerSync manually triggers a sync operation with rate limiting.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	// 30 second cooldown, roughly two requests per minute
	if time.Since(s.lastAPISync) < 30*time.Second {
		return SyncResult{}, ErrRateLimited
	}
	s.lastAPISync = time.Now()

	result, err := s.doSync(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	result.NextScheduledAt = s.getNextSync()
	return result, nil
}

// doSync downloads every source-list entry missing locally, dataset by
// dataset. A failed download is logged and skipped so the remaining files
// still arrive.
func (s *SyncService) doSync(ctx context.Context) (SyncResult, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()

	result := SyncResult{SyncedAt: time.Now()}

	for _, ds := range s.catalog.Datasets() {
		entries, err := s.sources.Sources(ctx, ds.Name)
		if err != nil {
			s.logger.Error("failed to list sources", "dataset", ds.Name, "error", err)
			continue
		}

		added := 0
		for _, entry := range entries {
			localPath := filepath.Join(s.catalog.ResolveLocalPath(ds.Name), filepath.FromSlash(entry.LocalFileName))
			if _, err := os.Stat(localPath); err == nil {
				continue
			}

			key := path.Join(ds.Name, entry.LocalFileName)
			if err := s.storage.Download(ctx, key, localPath); err != nil {
				s.logger.Error("failed to download raster", "key", key, "error", err)
				s.metrics.IncStorageOperations("download", false)
				result.FilesFailed++
				continue
			}
			s.metrics.IncStorageOperations("download", true)
			added++
		}

		if added == 0 {
			continue
		}
		result.FilesDownloaded += added

		if _, err := s.generate.Generate(ctx, ds.Name, false, false); err != nil {
			s.logger.Error("failed to generate manifests after sync", "dataset", ds.Name, "error", err)
		}
		s.catalog.Invalidate(ds.Name)
	}

	s.logger.Info("sync completed",
		"downloaded", result.FilesDownloaded,
		"failed", result.FilesFailed,
	)
	return result, nil
}

func (s *SyncService) setNextSync(t time.Time) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.nextSync = t
}

func (s *SyncService) getNextSync() time.Time {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
