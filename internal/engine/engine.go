package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/layout"
	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/mediatypes"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/resources"
	"thumbcrafter/internal/sampler"
	"thumbcrafter/internal/selection"
	"thumbcrafter/internal/workers"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Branch names the path a run took.
const (
	BranchVideo  = "video"
	BranchImages = "images"
	BranchEmpty  = "empty"
)

// ErrSuperseded is recorded when a newer run cancels this one.
var ErrSuperseded = errors.New("generation superseded by a newer run")

// ProjectInput is one generation request. If Video is set it drives
// generation and Images are ignored.
type ProjectInput struct {
	Description string
	Video       *mediatypes.MediaBlob
	Images      []*mediatypes.MediaBlob
}

// Result is the outcome of one run. Candidates of a superseded run are
// dropped.
type Result struct {
	RunID      string
	Branch     string
	Superseded bool
	Candidates []candidates.Candidate
}

// Decoder turns tracked handles into rasters and video sessions.
type Decoder interface {
	DecodeImage(ctx context.Context, h *resources.Handle) (image.Image, error)
	OpenSession(ctx context.Context, path string) (sampler.Session, error)
}

// Gate holds back runs, e.g. under memory pressure.
type Gate interface {
	Wait(ctx context.Context) error
}

// Config configures an Engine.
type Config struct {
	TempDir       string
	MaxCandidates int
	MaxFrames     int
	SeekTimeout   time.Duration
	PreviewWidth  int
	PreviewHeight int
	LoadWorkers   int
	// Random overrides the randomness source of the filler tier.
	Random selection.Random
	// Gate, if set, is waited on before a run touches its inputs.
	Gate Gate
}

// run is the bookkeeping for one in-flight generation.
type run struct {
	id      string
	cancel  context.CancelCauseFunc
	done    chan struct{}
	tracker atomic.Pointer[resources.Tracker]
}

// Engine generates thumbnail candidates. At most one run is in flight:
// starting a run supersedes the previous one.
type Engine struct {
	decoder Decoder
	cfg     Config
	layout  *layout.Engine
	log     *logging.Logger

	mu      sync.Mutex
	current *run

	runsStarted    atomic.Int64
	runsSuperseded atomic.Int64
	lastCandidates atomic.Int64
}

// New creates an Engine.
func New(decoder Decoder, cfg Config) *Engine {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = candidates.MaxCandidates
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = sampler.DefaultMaxFrames
	}
	if cfg.SeekTimeout <= 0 {
		cfg.SeekTimeout = sampler.DefaultSeekTimeout
	}
	return &Engine{
		decoder: decoder,
		cfg:     cfg,
		layout:  layout.New(cfg.PreviewWidth, cfg.PreviewHeight),
		log:     logging.Component("engine"),
	}
}

// Generate runs one generation and always returns a result; stage errors
// are logged and yield fewer (or no) candidates. Every handle the run
// acquires is released before Generate returns.
func (e *Engine) Generate(ctx context.Context, input ProjectInput) Result {
	r, runCtx, err := e.begin(ctx)
	if err != nil {
		e.log.Warn("run %s not started: %v", r.id, err)
		superseded := errors.Is(err, ErrSuperseded)
		outcome := "empty"
		if superseded {
			outcome = "superseded"
		}
		metrics.GenerationRunsTotal.WithLabelValues(BranchEmpty, outcome).Inc()
		return Result{RunID: r.id, Branch: BranchEmpty, Superseded: superseded}
	}
	defer e.end(r)

	tracer := otel.Tracer("engine")
	runCtx, span := tracer.Start(runCtx, "Engine.Generate",
		trace.WithAttributes(attribute.String("engine.run_id", r.id)))
	defer span.End()

	tracker := resources.NewTracker(e.cfg.TempDir, r.id)
	r.tracker.Store(tracker)
	defer func() {
		if err := tracker.ReleaseAll(); err != nil {
			e.log.Warn("run %s: release failed: %v", r.id, err)
		}
	}()

	start := time.Now()
	branch := BranchEmpty
	var out []candidates.Candidate

	switch {
	case !e.admitted(runCtx, r.id):
	case input.Video != nil:
		branch = BranchVideo
		out = e.generateFromVideo(runCtx, tracker, input.Video)
	case len(input.Images) > 0:
		branch = BranchImages
		out = e.generateFromImages(runCtx, tracker, input.Images, input.Description)
	}
	if len(out) > e.cfg.MaxCandidates {
		out = out[:e.cfg.MaxCandidates]
	}

	span.SetAttributes(
		attribute.String("engine.branch", branch),
		attribute.Int("engine.candidates", len(out)),
	)
	metrics.GenerationDuration.WithLabelValues(branch).Observe(time.Since(start).Seconds())

	result := Result{RunID: r.id, Branch: branch, Candidates: out}
	switch {
	case errors.Is(context.Cause(runCtx), ErrSuperseded):
		result.Superseded = true
		result.Candidates = nil
		metrics.GenerationRunsTotal.WithLabelValues(branch, "superseded").Inc()
		e.log.Info("run %s superseded after %v", r.id, time.Since(start))
	case len(out) == 0:
		metrics.GenerationRunsTotal.WithLabelValues(branch, "empty").Inc()
		e.log.Info("run %s (%s): no candidates", r.id, branch)
	default:
		metrics.GenerationRunsTotal.WithLabelValues(branch, "success").Inc()
		e.log.Info("run %s (%s): %d candidates in %v", r.id, branch, len(out), time.Since(start))
	}

	e.lastCandidates.Store(int64(len(result.Candidates)))
	return result
}

func (e *Engine) admitted(ctx context.Context, runID string) bool {
	if e.cfg.Gate == nil {
		return true
	}
	if err := e.cfg.Gate.Wait(ctx); err != nil {
		e.log.Warn("run %s held back: %v", runID, err)
		return false
	}
	return true
}

// begin registers a new run, cancels the previous one and waits until it
// released its handles. A run that stops waiting still holds its done
// channel open until its predecessor is done, so runs finish in order.
func (e *Engine) begin(ctx context.Context) (*run, context.Context, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	prev := e.current
	e.current = r
	e.mu.Unlock()

	e.runsStarted.Add(1)

	if prev != nil {
		e.runsSuperseded.Add(1)
		metrics.GenerationRunsSuperseded.Inc()
		e.log.Debug("run %s supersedes %s", r.id, prev.id)
		prev.cancel(ErrSuperseded)

		select {
		case <-prev.done:
		case <-runCtx.Done():
			go func() {
				<-prev.done
				e.end(r)
			}()
			return r, nil, fmt.Errorf("waiting for run %s: %w", prev.id, context.Cause(runCtx))
		}
	}
	return r, runCtx, nil
}

func (e *Engine) end(r *run) {
	e.mu.Lock()
	if e.current == r {
		e.current = nil
	}
	e.mu.Unlock()

	r.cancel(nil)
	close(r.done)
}

func (e *Engine) generateFromVideo(ctx context.Context, tracker *resources.Tracker, video *mediatypes.MediaBlob) []candidates.Candidate {
	h, err := tracker.Acquire(video)
	if err != nil {
		e.log.Warn("video: %v", err)
		return nil
	}
	path, err := h.Path()
	if err != nil {
		e.log.Warn("video: %v", err)
		return nil
	}

	opener := sampler.OpenerFunc(func(ctx context.Context, p string) (sampler.Session, error) {
		sess, err := e.decoder.OpenSession(ctx, p)
		if err != nil {
			return nil, err
		}
		return &trackedSession{Session: sess, handle: tracker.Track("video-session", sess)}, nil
	})

	frames, err := sampler.New(opener, sampler.Config{
		MaxFrames:   e.cfg.MaxFrames,
		SeekTimeout: e.cfg.SeekTimeout,
	}).Sample(ctx, path)
	if err != nil {
		e.log.Warn("video %s: no frames: %v", video.Name(), err)
		return nil
	}

	out := make([]candidates.Candidate, 0, len(frames))
	for i, f := range frames {
		metrics.CandidatesTotal.WithLabelValues(string(candidates.VideoFrame), "frame").Inc()
		out = append(out, candidates.Candidate{
			ID:          fmt.Sprintf("frame-%d", i+1),
			Title:       f.Label,
			Description: "Fotograma extraído del video",
			Preview:     f.Image,
			Kind:        candidates.VideoFrame,
			Timestamp:   f.Timestamp,
		})
	}
	return out
}

func (e *Engine) generateFromImages(ctx context.Context, tracker *resources.Tracker, images []*mediatypes.MediaBlob, description string) []candidates.Candidate {
	handles := make([]*resources.Handle, len(images))
	pool := make([]selection.Item, len(images))
	for i, blob := range images {
		h, err := tracker.Acquire(blob)
		if err != nil {
			e.log.Warn("photo %d: %v", i+1, err)
			continue
		}
		handles[i] = h
		pool[i] = selection.Item{Name: blob.Name()}
	}

	loader := selection.LoaderFunc(func(ctx context.Context, index int) (image.Image, error) {
		if handles[index] == nil {
			return nil, fmt.Errorf("photo %d: %w", index+1, resources.ErrNilBlob)
		}
		return e.decoder.DecodeImage(ctx, handles[index])
	})

	sel := selection.New(loader, e.layout, selection.Config{
		MaxCandidates: e.cfg.MaxCandidates,
		Workers:       workers.ForLoads(e.cfg.LoadWorkers, layout.MaxImages),
		Random:        e.cfg.Random,
	})
	return sel.Select(ctx, pool, description)
}

// trackedSession routes Close through the tracker handle, so the session is
// closed once whether the sampler or ReleaseAll gets there first.
type trackedSession struct {
	sampler.Session
	handle *resources.Handle
}

func (s *trackedSession) Close() error { return s.handle.Release() }

// GetStats implements metrics.StatsProvider.
func (e *Engine) GetStats() metrics.Stats {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()

	stats := metrics.Stats{
		RunsStarted:       e.runsStarted.Load(),
		RunsSuperseded:    e.runsSuperseded.Load(),
		InFlight:          current != nil,
		LastRunCandidates: int(e.lastCandidates.Load()),
	}
	if current != nil {
		if t := current.tracker.Load(); t != nil {
			stats.OutstandingHandles = t.Outstanding()
		}
	}
	return stats
}
