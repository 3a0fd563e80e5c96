package watcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func testWatcher(t *testing.T, extensions []string) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(Config{Extensions: extensions}, func(context.Context, Event) error { return nil }, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want Operation
	}{
		{"create", fsnotify.Create, OpCreate},
		{"write", fsnotify.Write, OpModify},
		{"chmod", fsnotify.Chmod, OpModify},
		{"remove", fsnotify.Remove, OpDelete},
		{"rename", fsnotify.Rename, OpDelete},
		{"create and write", fsnotify.Create | fsnotify.Write, OpCreate},
		{"write and remove", fsnotify.Write | fsnotify.Remove, OpDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fsnotifyOpToOperation(tt.op); got != tt.want {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestUpdatePendingEvent(t *testing.T) {
	tests := []struct {
		name     string
		existing Operation
		incoming Operation
		want     Operation
	}{
		{"delete then create", OpDelete, OpCreate, OpCreate},
		{"modify then delete", OpModify, OpDelete, OpDelete},
		{"create then delete", OpCreate, OpDelete, OpDelete},
		{"create then modify", OpCreate, OpModify, OpCreate},
		{"modify then modify", OpModify, OpModify, OpModify},
	}

	w := testWatcher(t, []string{".hgt"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := &pendingEvent{timestamp: time.Now().Add(-time.Second), op: tt.existing}
			w.updatePendingEvent(pending, tt.incoming)
			if pending.op != tt.want {
				t.Errorf("op = %v, want %v", pending.op, tt.want)
			}
			if time.Since(pending.timestamp) > time.Second/2 {
				t.Error("timestamp was not refreshed")
			}
		})
	}
}

func TestIsRelevantFile(t *testing.T) {
	w := testWatcher(t, []string{".hgt", ".TIF"})

	tests := []struct {
		path string
		want bool
	}{
		{"data/srtm/N47E008.hgt", true},
		{"data/srtm/N47E008.HGT", true},
		{"data/alps/zurich.tif", true},
		{"data/srtm/manifest/N47E008.json", true},
		{"data/srtm/notes.txt", false},
		{"data/srtm/N47E008", false},
	}

	for _, tt := range tests {
		if got := w.isRelevantFile(tt.path); got != tt.want {
			t.Errorf("isRelevantFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
