// Package sources loads the externally supplied raster source lists.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/reliefmap/demgrid/internal/domain"
	"github.com/reliefmap/demgrid/internal/ports/output"
)

// IndexFileName is the per-dataset source list object.
const IndexFileName = "sources.json"

// JSONIndex implements SourceCatalog by reading a JSON index object per
// dataset through the object storage port. The index is a plain array of
// source entries; the core never parses the rasters it names.
type JSONIndex struct {
	storage output.ObjectStorage
	logger  *slog.Logger
}

// NewJSONIndex creates a new source catalog adapter.
func NewJSONIndex(storage output.ObjectStorage, logger *slog.Logger) *JSONIndex {
	return &JSONIndex{storage: storage, logger: logger}
}

// Sources returns the source entries for a dataset.
func (c *JSONIndex) Sources(ctx context.Context, dataset string) ([]domain.SourceEntry, error) {
	key := path.Join(dataset, IndexFileName)

	r, err := c.storage.GetReader(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("opening source index %s: %w", key, err)
	}
	defer func() { _ = r.Close() }()

	var entries []domain.SourceEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding source index %s: %w", key, err)
	}

	// Drop entries that cannot be joined against anything.
	valid := entries[:0]
	for _, e := range entries {
		if e.RemoteURL == "" || e.LocalFileName == "" {
			c.logger.Warn("skipping incomplete source entry", "dataset", dataset, "url", e.RemoteURL)
			continue
		}
		valid = append(valid, e)
	}

	c.logger.Debug("loaded source index", "dataset", dataset, "entries", len(valid))
	return valid, nil
}
