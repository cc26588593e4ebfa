package resources

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"thumbcrafter/internal/mediatypes"
)

type countingCloser struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingCloser) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testBlob(name string) *mediatypes.MediaBlob {
	return mediatypes.NewMediaBlob(name, []byte("not really a jpeg"), "image/jpeg")
}

func TestAcquireAndReleaseAll(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run1")

	h1, err := tr.Acquire(testBlob("a.jpg"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	h2, err := tr.Acquire(testBlob("b.jpg"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if got := tr.Outstanding(); got != 2 {
		t.Errorf("Outstanding() = %d, want 2", got)
	}

	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}
	if got := tr.Outstanding(); got != 0 {
		t.Errorf("Outstanding() after release = %d, want 0", got)
	}
	if !h1.Released() || !h2.Released() {
		t.Error("handles should report released")
	}
}

func TestReleasedHandleRejectsUse(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run2")
	h, err := tr.Acquire(testBlob("a.jpg"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}

	if _, err := h.Reader(); !errors.Is(err, ErrReleased) {
		t.Errorf("Reader() after release error = %v, want ErrReleased", err)
	}
	if _, err := h.Path(); !errors.Is(err, ErrReleased) {
		t.Errorf("Path() after release error = %v, want ErrReleased", err)
	}
}

func TestReleaseAllIdempotent(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run3")
	c := &countingCloser{}
	tr.Track("session", c)

	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("first ReleaseAll() error = %v", err)
	}
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("second ReleaseAll() error = %v", err)
	}
	if c.Calls() != 1 {
		t.Errorf("Close called %d times, want 1", c.Calls())
	}
}

func TestEarlyReleaseClosesOnce(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run8")
	c := &countingCloser{}
	h := tr.Track("session", c)

	if err := h.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !h.Released() {
		t.Error("handle should report released")
	}
	if got := tr.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}
	if c.Calls() != 1 {
		t.Errorf("Close called %d times, want 1", c.Calls())
	}
}

func TestReleaseAllEmpty(t *testing.T) {
	tr := NewTracker(t.TempDir(), "empty")
	if err := tr.ReleaseAll(); err != nil {
		t.Errorf("ReleaseAll() on empty tracker error = %v", err)
	}
}

func TestPathMaterializesAndCleansUp(t *testing.T) {
	base := t.TempDir()
	tr := NewTracker(base, "run4")

	h, err := tr.Acquire(testBlob("clip.jpg"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	path, err := h.Path()
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Errorf("Path() extension = %q, want .jpg", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "not really a jpeg" {
		t.Errorf("materialized contents = %q", data)
	}

	again, err := h.Path()
	if err != nil || again != path {
		t.Errorf("second Path() = (%q, %v), want (%q, nil)", again, err, path)
	}

	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temp file still exists after release: %v", err)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("base dir has %d entries after release, want 0", len(entries))
	}
}

func TestReleaseAllCollectsErrors(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run5")
	boom := errors.New("boom")
	failing := &countingCloser{err: boom}
	ok := &countingCloser{}
	tr.Track("failing", failing)
	tr.Track("ok", ok)

	err := tr.ReleaseAll()
	if !errors.Is(err, boom) {
		t.Errorf("ReleaseAll() error = %v, want wrapping boom", err)
	}
	if failing.Calls() != 1 || ok.Calls() != 1 {
		t.Errorf("close calls = (%d, %d), want (1, 1)", failing.Calls(), ok.Calls())
	}
	if got := tr.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0 even after close error", got)
	}
}

func TestAcquireNilBlob(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run6")
	if _, err := tr.Acquire(nil); !errors.Is(err, ErrNilBlob) {
		t.Errorf("Acquire(nil) error = %v, want ErrNilBlob", err)
	}
}

func TestConcurrentAcquire(t *testing.T) {
	tr := NewTracker(t.TempDir(), "run7")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Acquire(testBlob("x.jpg")); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := tr.Outstanding(); got != 16 {
		t.Errorf("Outstanding() = %d, want 16", got)
	}
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}
	if got := tr.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}
