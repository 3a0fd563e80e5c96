package manifest

import (
	"fmt"
	"strings"

	"github.com/reliefmap/demgrid/internal/domain"
)

// Migrate upgrades a metadata record to the current schema version, in
// place. It is pure (touches nothing but the record), idempotent (a current
// record is a no-op) and never downgrades: a record from a future version is
// an error, not a rewrite.
//
// Version history:
//
//	1 -> 2: filenames were stored with OS-specific separators; normalize to
//	        forward slashes.
//	2 -> 3: a single pixel size covered both axes; split into per-axis
//	        values, duplicating the legacy value for Y.
func Migrate(md *domain.FileMetadata) (bool, error) {
	if md.Version == domain.ManifestVersion {
		return false, nil
	}
	if md.Version > domain.ManifestVersion {
		return false, fmt.Errorf("record version %d is newer than schema version %d",
			md.Version, domain.ManifestVersion)
	}
	if md.Version < 1 {
		return false, fmt.Errorf("record version %d is invalid", md.Version)
	}

	for md.Version < domain.ManifestVersion {
		switch md.Version {
		case 1:
			md.Filename = strings.ReplaceAll(md.Filename, `\`, "/")
			md.Version = 2
		case 2:
			if md.PixelSize.Y == 0 {
				md.PixelSize.Y = md.PixelSize.X
			}
			md.Version = 3
		}
	}

	return true, nil
}
