package manifest

import (
	"testing"

	"github.com/reliefmap/demgrid/internal/domain"
)

func TestMigrateFromVersion1(t *testing.T) {
	md := &domain.FileMetadata{
		Filename:  `srtm\N47E008.hgt`,
		Version:   1,
		PixelSize: domain.PixelSize{X: 0.5},
	}

	changed, err := Migrate(md)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if !changed {
		t.Fatal("Migrate() changed = false, want true")
	}
	if md.Filename != "srtm/N47E008.hgt" {
		t.Errorf("Filename = %q, want forward slashes", md.Filename)
	}
	if md.PixelSize.Y != md.PixelSize.X {
		t.Errorf("PixelSize.Y = %g, want %g", md.PixelSize.Y, md.PixelSize.X)
	}
	if md.Version != domain.ManifestVersion {
		t.Errorf("Version = %d, want %d", md.Version, domain.ManifestVersion)
	}
}

func TestMigrateFromVersion2KeepsPixelY(t *testing.T) {
	md := &domain.FileMetadata{
		Filename:  "srtm/N47E008.hgt",
		Version:   2,
		PixelSize: domain.PixelSize{X: 0.5, Y: 0.25},
	}

	changed, err := Migrate(md)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if !changed {
		t.Fatal("Migrate() changed = false, want true")
	}
	if md.PixelSize.Y != 0.25 {
		t.Errorf("PixelSize.Y = %g, want 0.25 (already set, must not be overwritten)", md.PixelSize.Y)
	}
}

func TestMigrateCurrentIsNoOp(t *testing.T) {
	md := &domain.FileMetadata{
		Filename: "srtm/N47E008.hgt",
		Version:  domain.ManifestVersion,
	}

	changed, err := Migrate(md)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if changed {
		t.Error("Migrate() changed = true for a current record")
	}
}

func TestMigrateRejectsBadVersions(t *testing.T) {
	for _, version := range []int{0, -1, domain.ManifestVersion + 1} {
		md := &domain.FileMetadata{Version: version}
		if _, err := Migrate(md); err == nil {
			t.Errorf("Migrate() = nil error for version %d", version)
		}
	}
}
