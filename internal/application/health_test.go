package application

import (
	"context"
	"testing"
)

func TestHealthService(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "N47E008", currentRecord("srtm/N47E008.hgt"))

	catalog := newTestCatalog(t, root, nil)
	svc := NewHealthService(catalog)
	ctx := context.Background()

	if !svc.IsHealthy(ctx) {
		t.Error("IsHealthy() = false, want true")
	}
	if !svc.IsReady(ctx) {
		t.Error("IsReady() = false, want true")
	}

	details := svc.GetHealthDetails(ctx)
	if details.DatasetsCached != 0 {
		t.Errorf("DatasetsCached = %d before any load, want 0", details.DatasetsCached)
	}

	if _, err := catalog.LoadManifest(ctx, "srtm", false); err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	details = svc.GetHealthDetails(ctx)
	if details.DatasetsCached != 1 {
		t.Errorf("DatasetsCached = %d, want 1", details.DatasetsCached)
	}
	if details.ManifestsCached != 1 {
		t.Errorf("ManifestsCached = %d, want 1", details.ManifestsCached)
	}
	if details.Components["catalog"] != "ok" {
		t.Errorf("Components = %v, want catalog ok", details.Components)
	}
}
