package handlers

import (
	"context"
	"time"

	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/mediatypes"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/startup"
)

// maxImages bounds the images accepted by one generate request.
const maxImages = 20

// Generator runs candidate generation.
type Generator interface {
	Generate(ctx context.Context, input engine.ProjectInput) engine.Result
	GetStats() metrics.Stats
}

// Pauser reports whether new runs are being held back and how close the
// process is to its memory limit.
type Pauser interface {
	Paused() bool
	Usage() float64
}

// Handlers serves the candidate API.
type Handlers struct {
	generator  Generator
	pauser     Pauser
	limits     mediatypes.Limits
	videoReady bool
	startTime  time.Time
}

// New creates the handlers. pauser may be nil.
func New(gen Generator, pauser Pauser, config *startup.Config) *Handlers {
	limits := mediatypes.DefaultLimits()
	if config.MaxUploadMB > 0 {
		limits.MaxVideoBytes = config.MaxUploadMB << 20
	}
	return &Handlers{
		generator:  gen,
		pauser:     pauser,
		limits:     limits,
		videoReady: config.FFmpegAvailable && config.FFprobeAvailable,
		startTime:  time.Now(),
	}
}

// maxRequestBytes bounds a whole multipart request.
func (h *Handlers) maxRequestBytes() int64 {
	return h.limits.MaxVideoBytes + maxImages*h.limits.MaxImageBytes + 1<<20
}
