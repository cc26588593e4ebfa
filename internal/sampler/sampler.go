package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/metrics"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxFrames is the number of frames sampled from a video.
	DefaultMaxFrames = 12
	// DefaultSeekTimeout bounds a single seek-and-decode.
	DefaultSeekTimeout = 10 * time.Second
	// FallbackDuration is used when the decoder reports no duration.
	FallbackDuration = 1.0
)

var (
	// ErrSeekTimeout is returned when a seek does not complete in time.
	ErrSeekTimeout = errors.New("seek timed out")
	// ErrSeekInFlight is returned by a Session when a seek is requested
	// while another is still running.
	ErrSeekInFlight = errors.New("seek already in flight")
	// ErrInvalidTransition indicates a bug in the sampling loop.
	ErrInvalidTransition = errors.New("invalid sampler state transition")
)

// Session is a seekable video decode session.
type Session interface {
	// Duration returns the length in seconds, or <= 0 when unknown.
	Duration() float64
	// Size returns the native frame dimensions.
	Size() (width, height int)
	// Seek starts positioning at t seconds. The returned channel receives
	// the outcome once the frame at t is available.
	Seek(t float64) <-chan error
	// CurrentFrame returns the frame at the last completed seek.
	CurrentFrame() (image.Image, error)
	Close() error
}

// Opener opens decode sessions.
type Opener interface {
	Open(ctx context.Context, path string) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, path string) (Session, error)

// Open calls f(ctx, path).
func (f OpenerFunc) Open(ctx context.Context, path string) (Session, error) {
	return f(ctx, path)
}

// Frame is one sampled video frame.
type Frame struct {
	Image     *image.NRGBA
	Timestamp float64
	Label     string
}

// FrameLabel returns the display title for a frame at t seconds.
func FrameLabel(t float64) string {
	return fmt.Sprintf("Fotograma %.1fs", t)
}

// Config configures a Sampler.
type Config struct {
	MaxFrames   int
	SeekTimeout time.Duration
}

// Sampler extracts evenly spaced frames from a video.
type Sampler struct {
	opener      Opener
	maxFrames   int
	seekTimeout time.Duration
	log         *logging.Logger
}

// New creates a Sampler. Zero config values select the defaults.
func New(opener Opener, cfg Config) *Sampler {
	s := &Sampler{
		opener:      opener,
		maxFrames:   cfg.MaxFrames,
		seekTimeout: cfg.SeekTimeout,
		log:         logging.Component("sampler"),
	}
	if s.maxFrames <= 0 {
		s.maxFrames = DefaultMaxFrames
	}
	if s.seekTimeout <= 0 {
		s.seekTimeout = DefaultSeekTimeout
	}
	return s
}

// MaxFrames returns the configured frame count.
func (s *Sampler) MaxFrames() int { return s.maxFrames }

// Timestamps returns the sample times for a video of the given duration:
// t_i = i * duration / maxFrames while t_i <= duration.
func Timestamps(duration float64, maxFrames int) []float64 {
	if duration <= 0 {
		duration = FallbackDuration
	}
	if maxFrames <= 0 {
		return nil
	}
	interval := duration / float64(maxFrames)
	out := make([]float64, 0, maxFrames)
	for i := 0; i < maxFrames; i++ {
		t := float64(i) * interval
		if t > duration {
			break
		}
		out = append(out, t)
	}
	return out
}

// Sample opens the video at path and captures up to MaxFrames frames in
// strictly increasing timestamp order. Any failure discards every frame
// captured so far and returns the error.
func (s *Sampler) Sample(ctx context.Context, path string) ([]Frame, error) {
	tracer := otel.Tracer("sampler")
	ctx, span := tracer.Start(ctx, "Sampler.Sample")
	defer span.End()

	frames, stage, err := s.sample(ctx, path)
	if err != nil {
		metrics.SamplerFailuresTotal.WithLabelValues(stage).Inc()
		span.RecordError(err)
		s.log.Warn("sampling failed at %s: %v", stage, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("sampler.frames", len(frames)))
	metrics.SamplerFramesTotal.Add(float64(len(frames)))
	s.log.Debug("sampled %d frames", len(frames))
	return frames, nil
}

func (s *Sampler) sample(ctx context.Context, path string) ([]Frame, string, error) {
	sess, err := s.opener.Open(ctx, path)
	if err != nil {
		return nil, "open", fmt.Errorf("open video: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.log.Warn("failed to close session: %v", err)
		}
	}()

	duration := sess.Duration()
	if duration <= 0 {
		s.log.Debug("duration unavailable, using %.1fs", FallbackDuration)
		duration = FallbackDuration
	}
	width, height := sess.Size()

	m := &machine{}
	frames := make([]Frame, 0, s.maxFrames)

	for _, t := range Timestamps(duration, s.maxFrames) {
		if err := m.to(stateSeeking, t); err != nil {
			return nil, "seek", err
		}
		if stage, err := s.seek(ctx, sess, t); err != nil {
			return nil, stage, err
		}

		img, err := sess.CurrentFrame()
		if err != nil {
			return nil, "capture", fmt.Errorf("capture at %.3fs: %w", t, err)
		}
		if err := m.to(stateCaptured, t); err != nil {
			return nil, "capture", err
		}

		frames = append(frames, Frame{
			Image:     rasterize(img, width, height),
			Timestamp: t,
			Label:     FrameLabel(t),
		})
	}

	if err := m.to(stateDone, duration); err != nil {
		return nil, "capture", err
	}
	return frames, "", nil
}

// seek issues one seek and waits for its completion, the seek timeout or
// ctx, whichever comes first.
func (s *Sampler) seek(ctx context.Context, sess Session, t float64) (string, error) {
	start := time.Now()
	timer := time.NewTimer(s.seekTimeout)
	defer timer.Stop()

	select {
	case err := <-sess.Seek(t):
		metrics.SamplerSeekDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return "seek", fmt.Errorf("seek to %.3fs: %w", t, err)
		}
		return "", nil
	case <-timer.C:
		return "timeout", fmt.Errorf("seek to %.3fs after %v: %w", t, s.seekTimeout, ErrSeekTimeout)
	case <-ctx.Done():
		return "cancelled", ctx.Err()
	}
}

// rasterize copies a decoded frame into a new NRGBA at the session's native
// size, so it stays valid after the session is closed.
func rasterize(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	if width > 0 && height > 0 && (b.Dx() != width || b.Dy() != height) {
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return imaging.Clone(img)
}
