package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu       sync.Mutex
	events   []string
	rebuilds []string
}

func (r *recorder) event(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+path)
}

func (r *recorder) rebuild(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuilds = append(r.rebuilds, reason)
}

func (r *recorder) hasEvent(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func (r *recorder) rebuildCount(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.rebuilds {
		if got == reason {
			n++
		}
	}
	return n
}

func startWatcher(t *testing.T, root string, opts Options) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, root, opts, logger, rec.event, rec.rebuild); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatch_NewFileTriggersRebuild(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.hasEvent("created:new.md")
	}, "expected created:new.md callback")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.rebuildCount("change") >= 1
	}, "expected a rebuild after the change")
}

func TestWatch_BurstIsDebounced(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Debounce: 300 * time.Millisecond})

	for _, name := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		_ = os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.rebuildCount("change") >= 1
	}, "expected a rebuild after the burst")
	time.Sleep(500 * time.Millisecond)
	if n := rec.rebuildCount("change"); n > 2 {
		t.Errorf("rebuilds = %d, want the burst coalesced", n)
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	subDir := filepath.Join(root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(200 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.hasEvent("created:subdir/deep.md")
	}, "file in new subdir not seen by watcher")
}

func TestWatch_DeleteReported(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "del.md"), []byte("# Delete Me"), 0o644)
	rec := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.Remove(filepath.Join(root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.hasEvent("deleted:del.md")
	}, "expected deleted:del.md callback")
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Debounce: 50 * time.Millisecond})

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".hidden.md"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if n := rec.rebuildCount("change"); n != 0 {
		t.Errorf("rebuilds = %d, want 0", n)
	}
}

func TestWatch_Schedule(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, Options{Schedule: "@every 1s"})

	eventually(t, 4*time.Second, 100*time.Millisecond, func() bool {
		return rec.rebuildCount("schedule") >= 1
	}, "expected a scheduled rebuild")
}

func TestWatch_BadSchedule(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	err := Watch(context.Background(), t.TempDir(), Options{Schedule: "not a schedule"}, logger, nil, func(context.Context, string) {})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"", "@every 5m", "@hourly", "0 */10 * * * *"} {
		if err := ValidateSchedule(spec); err != nil {
			t.Errorf("ValidateSchedule(%q) = %v", spec, err)
		}
	}
	if err := ValidateSchedule("every day"); err == nil {
		t.Error("expected error for invalid spec")
	}
}
