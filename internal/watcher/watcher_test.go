package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, path)
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed), len(r.removed)
}

func TestWatcher_Files(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, ".env"),
		filepath.Join(dir, "config.yaml"),
	}, nil, nil)
	files := w.Files()
	if len(files) != 2 {
		t.Fatalf("Files() = %v, want 2 entries", files)
	}
	if filepath.Base(files[0]) != ".env" || filepath.Base(files[1]) != "config.yaml" {
		t.Errorf("Files() = %v, want sorted .env, config.yaml", files)
	}
}

func TestWatcher_WatchesFileCreatedLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	rec := &recorder{}
	w := NewWatcher([]string{path}, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(path, "APOD_API_KEY=x\n"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if changed, _ := rec.counts(); changed != 1 {
		t.Errorf("expected one change for a newly created file, got %d", changed)
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeFile(path, "debug: false\n"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{path}, rec.onChange, rec.onRemove, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := writeFile(path, "debug: true\n"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	changed, _ := rec.counts()
	if changed != 1 {
		t.Errorf("expected one debounced change, got %d", changed)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeFile(path, "debug: false\n"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{path}, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "other.yaml"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if changed, removed := rec.counts(); changed != 0 || removed != 0 {
		t.Errorf("sibling file triggered callbacks: changed %d removed %d", changed, removed)
	}
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeFile(path, "debug: false\n"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{path}, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if _, removed := rec.counts(); removed != 1 {
		t.Errorf("expected one remove callback, got %d", removed)
	}
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "nope", "config.yaml")}, nil, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_StopRightAfterStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := NewWatcher([]string{filepath.Join(t.TempDir(), "config.yaml")}, nil, nil)
		if err := w.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		w.Stop()
	}
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_CancelThenStop(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "config.yaml")}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	w.Stop()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeFile(path, "debug: false\n"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{path}, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(path, "debug: true\n"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if changed, _ := rec.counts(); changed != 1 {
		t.Errorf("expected one change after restart, got %d", changed)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
