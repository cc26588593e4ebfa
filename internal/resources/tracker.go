package resources

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/mediatypes"
	"thumbcrafter/internal/metrics"
)

var (
	// ErrReleased is returned when a handle is used after release.
	ErrReleased = errors.New("resource handle released")
	// ErrNilBlob is returned when Acquire is called without a blob.
	ErrNilBlob = errors.New("nil media blob")
)

const (
	kindBlob   = "blob"
	kindCloser = "closer"
)

// Handle is a transient, run-scoped view of a media blob or a tracked
// closer such as a video decode session.
type Handle struct {
	id      int
	name    string
	kind    string
	blob    *mediatypes.MediaBlob
	closer  io.Closer
	tracker *Tracker

	mu       sync.Mutex
	path     string
	released bool
}

// Name returns a human readable name for logs.
func (h *Handle) Name() string { return h.name }

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Reader returns a fresh reader over the blob bytes.
func (h *Handle) Reader() (io.ReadSeeker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, fmt.Errorf("%s: %w", h.name, ErrReleased)
	}
	if h.blob == nil {
		return nil, fmt.Errorf("%s: handle has no blob", h.name)
	}
	return h.blob.Reader(), nil
}

// Path materializes the blob into the run's temp directory on first use and
// returns the file path. External decoders (ffmpeg) read from this path.
func (h *Handle) Path() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return "", fmt.Errorf("%s: %w", h.name, ErrReleased)
	}
	if h.blob == nil {
		return "", fmt.Errorf("%s: handle has no blob", h.name)
	}
	if h.path != "" {
		return h.path, nil
	}

	dir, err := h.tracker.runDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("blob-%03d%s", h.id, h.blob.Extension()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", h.name, err)
	}
	if _, err := h.blob.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write temp file for %s: %w", h.name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close temp file for %s: %w", h.name, err)
	}

	h.path = path
	h.tracker.log.Debug("materialized %s -> %s (%d bytes)", h.name, path, h.blob.Size())
	return path, nil
}

// Release frees the handle ahead of ReleaseAll. The handle is still freed
// exactly once; later calls, including the one from ReleaseAll, are no-ops.
func (h *Handle) Release() error {
	return h.release()
}

func (h *Handle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	metrics.ResourceHandlesOutstanding.Dec()

	var errs []error
	if h.closer != nil {
		if err := h.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", h.name, err))
		}
	}
	if h.path != "" {
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", h.path, err))
		}
		h.path = ""
	}
	return errors.Join(errs...)
}

// Tracker records every handle acquired during one generation run and
// releases all of them in ReleaseAll.
type Tracker struct {
	baseDir string
	runID   string
	log     *logging.Logger

	mu      sync.Mutex
	dir     string
	nextID  int
	handles []*Handle
}

// NewTracker creates a tracker whose temp files live under baseDir
// (os.TempDir() when empty).
func NewTracker(baseDir, runID string) *Tracker {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Tracker{
		baseDir: baseDir,
		runID:   runID,
		log:     logging.Component("resources").With(runID),
	}
}

// Acquire records a new handle for blob.
func (t *Tracker) Acquire(blob *mediatypes.MediaBlob) (*Handle, error) {
	if blob == nil {
		return nil, ErrNilBlob
	}
	h := t.add(&Handle{kind: kindBlob, blob: blob})
	h.name = fmt.Sprintf("blob#%d(%s)", h.id, blob.Name())
	return h, nil
}

// Track records an arbitrary closer, such as a decode session, so that it
// is closed by ReleaseAll.
func (t *Tracker) Track(name string, c io.Closer) *Handle {
	h := t.add(&Handle{kind: kindCloser, closer: c})
	h.name = fmt.Sprintf("%s#%d", name, h.id)
	return h
}

func (t *Tracker) add(h *Handle) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	h.id = t.nextID
	h.tracker = t
	t.handles = append(t.handles, h)

	metrics.ResourceHandlesAcquired.WithLabelValues(h.kind).Inc()
	metrics.ResourceHandlesOutstanding.Inc()
	return h
}

func (t *Tracker) runDir() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dir != "" {
		return t.dir, nil
	}
	if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp base dir: %w", err)
	}
	dir, err := os.MkdirTemp(t.baseDir, "run-"+t.runID+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create run temp dir: %w", err)
	}
	t.dir = dir
	return dir, nil
}

// Outstanding returns the number of handles not yet released.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	handles := append([]*Handle(nil), t.handles...)
	t.mu.Unlock()

	n := 0
	for _, h := range handles {
		if !h.Released() {
			n++
		}
	}
	return n
}

// ReleaseAll releases every recorded handle, most recent first, and removes
// the run temp directory. It is idempotent: a second call, or a call on an
// empty tracker, does nothing.
func (t *Tracker) ReleaseAll() error {
	t.mu.Lock()
	handles := t.handles
	t.handles = nil
	dir := t.dir
	t.dir = ""
	t.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].release(); err != nil {
			errs = append(errs, err)
		}
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove run dir: %w", err))
		}
	}

	if len(handles) > 0 {
		t.log.Debug("released %d handles", len(handles))
	}

	err := errors.Join(errs...)
	if err != nil {
		metrics.ResourceReleaseErrors.Add(float64(len(errs)))
		t.log.Warn("release errors: %v", err)
	}
	return err
}
