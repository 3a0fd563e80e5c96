package domain

import (
	"path"
	"strings"
)

// ManifestVersion is the current metadata schema version. Records persisted
// with an older version are migrated on load and rewritten.
const ManifestVersion = 3

// ManifestDirName is the subdirectory, colocated with the raster files,
// that holds the persisted metadata records.
const ManifestDirName = "manifest"

// PixelSize is the per-axis ground size of one raster cell in degrees.
type PixelSize struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FileMetadata is the persisted metadata record for one raster file. It is
// created from a parsed raster or loaded from a manifest, and mutated only
// during version migration.
type FileMetadata struct {
	Filename  string       `json:"filename"` // Root-relative, forward slashes
	Format    RasterFormat `json:"format"`
	Version   int          `json:"version"`
	Width     int          `json:"width"`  // Grid columns
	Height    int          `json:"height"` // Grid rows
	PixelSize PixelSize    `json:"pixelSize"`
	Bounds    BoundingBox  `json:"bounds"`
}

// Title returns the raster file name without directory or extension, used to
// name the manifest record and its preview sidecar.
func (m *FileMetadata) Title() string {
	base := path.Base(m.Filename)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsCurrent returns true if the record carries the current schema version.
func (m *FileMetadata) IsCurrent() bool {
	return m.Version == ManifestVersion
}

// SourceEntry is one entry of the externally supplied source list: a
// candidate raster file with its coverage and remote identity. The core
// never parses these, it only joins them against local state.
type SourceEntry struct {
	Bounds        BoundingBox `json:"bounds"`
	LocalFileName string      `json:"localFileName"`
	RemoteURL     string      `json:"remoteUrl"`
}

// FileReport is the join of a source-list entry with local filesystem state.
// Constructed fresh on each report request, never persisted.
type FileReport struct {
	ExistsLocally bool   `json:"existsLocally"`
	HasMetadata   bool   `json:"hasMetadata"`
	LocalPath     string `json:"localPath"`
	SourceURL     string `json:"sourceUrl"`
}

// Report maps a source identifier (remote URL) to its file report.
type Report map[string]FileReport

// MissingCount returns the number of source entries without a local file.
func (r Report) MissingCount() int {
	n := 0
	for _, fr := range r {
		if !fr.ExistsLocally {
			n++
		}
	}
	return n
}

// UnindexedCount returns the number of local files without a manifest.
func (r Report) UnindexedCount() int {
	n := 0
	for _, fr := range r {
		if fr.ExistsLocally && !fr.HasMetadata {
			n++
		}
	}
	return n
}
