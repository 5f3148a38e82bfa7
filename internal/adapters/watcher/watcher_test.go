package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{"Remove returns OpDelete", fsnotify.Remove, OpDelete},
		{"Rename returns OpDelete", fsnotify.Rename, OpDelete},
		{"Create returns OpCreate", fsnotify.Create, OpCreate},
		{"Write returns OpModify", fsnotify.Write, OpModify},
		{"Chmod returns OpModify", fsnotify.Chmod, OpModify},
		{"Remove takes precedence over Write", fsnotify.Remove | fsnotify.Write, OpDelete},
		{"Rename takes precedence over Create", fsnotify.Rename | fsnotify.Create, OpDelete},
		{"Create takes precedence over Write", fsnotify.Create | fsnotify.Write, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fsnotifyOpToOperation(tt.op); got != tt.expected {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, got, tt.expected)
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op       Operation
		expected string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("Operation.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestIsGeoPackageFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"test.gpkg", true},
		{"test.GPKG", true},
		{"/path/to/file.gpkg", true},
		{"test.txt", false},
		{"test.gpkg.bak", false},
		{"gpkg", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isGeoPackageFile(tt.path); got != tt.expected {
			t.Errorf("isGeoPackageFile(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestRecordMergesEvents(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"writes after create", []Operation{OpCreate, OpModify, OpModify}, OpCreate},
		{"replaced in place", []Operation{OpDelete, OpCreate}, OpCreate},
		{"created then removed", []Operation{OpCreate, OpModify, OpDelete}, OpDelete},
		{"modified", []Operation{OpModify, OpModify}, OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Watcher{pending: make(map[string]*pendingEvent), debounce: time.Second}
			start := time.Now()
			for i, op := range tt.ops {
				w.record("/data/roads.gpkg", op, start.Add(time.Duration(i)*time.Millisecond))
			}

			if got := w.settled(start.Add(500 * time.Millisecond)); len(got) != 0 {
				t.Fatalf("settled before debounce: %v", got)
			}
			got := w.settled(start.Add(2 * time.Second))
			if len(got) != 1 || got[0].Operation != tt.want {
				t.Errorf("settled = %v, want one %s event", got, tt.want)
			}
			if len(w.pending) != 0 {
				t.Error("settled event still pending")
			}
		})
	}
}

func TestWatcherDeliversNewPackages(t *testing.T) {
	dir := t.TempDir()
	events := make(chan Event, 10)

	w, err := New(Config{
		Paths:    []string{dir},
		Debounce: 50 * time.Millisecond,
		Ignore:   func(path string) bool { return strings.HasSuffix(path, "_densified.gpkg") },
	}, func(_ context.Context, e Event) error {
		events <- e
		return nil
	}, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	for _, name := range []string{"roads_densified.gpkg", "notes.txt", "roads.gpkg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case e := <-events:
		if filepath.Base(e.Path) != "roads.gpkg" || e.Operation != OpCreate {
			t.Errorf("event = %+v, want create of roads.gpkg", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case e := <-events:
		t.Errorf("unexpected event %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStartFailsWithoutPaths(t *testing.T) {
	w, err := New(Config{Paths: []string{"/nonexistent/watch/dir"}}, func(context.Context, Event) error { return nil }, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	if err := w.Start(context.Background()); err == nil {
		t.Error("Start() should fail when no path can be watched")
	}
}
