package selection

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Item is one entry of the image pool. Its position in the pool is its
// 1-based "photo" number minus one.
type Item struct {
	Name string
}

// Loader decodes the pool image at index.
type Loader interface {
	Load(ctx context.Context, index int) (image.Image, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, index int) (image.Image, error)

// Load calls f(ctx, index).
func (f LoaderFunc) Load(ctx context.Context, index int) (image.Image, error) {
	return f(ctx, index)
}

// Compositor lays out 1-4 images into one preview.
type Compositor interface {
	Compose(images []image.Image) (*image.NRGBA, error)
}

// Random is the source of randomness for the filler tier.
type Random interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// Config configures a Selector.
type Config struct {
	// MaxCandidates caps the result; 0 selects candidates.MaxCandidates.
	MaxCandidates int
	// Workers bounds concurrent image loads within one combination.
	Workers int
	// Random overrides the randomness source.
	Random Random
}

// Selector runs the four selection tiers over an image pool.
type Selector struct {
	loader     Loader
	compositor Compositor
	random     Random
	limit      int
	workers    int
	log        *logging.Logger
}

// New creates a Selector.
func New(loader Loader, compositor Compositor, cfg Config) *Selector {
	s := &Selector{
		loader:     loader,
		compositor: compositor,
		random:     cfg.Random,
		limit:      cfg.MaxCandidates,
		workers:    cfg.Workers,
		log:        logging.Component("selection"),
	}
	if s.random == nil {
		s.random = globalRandom{}
	}
	if s.limit <= 0 {
		s.limit = candidates.MaxCandidates
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	return s
}

// request carries the immutable inputs shared by all tiers.
type request struct {
	pool        []Item
	description string
	names       []string
}

// Select produces at most MaxCandidates candidates for pool. Tiers run in
// order (numeric references, filename keywords, singles, random filler)
// and the pipeline stops as soon as the cap is reached. Combinations whose
// images fail to load or composite are skipped.
func (s *Selector) Select(ctx context.Context, pool []Item, description string) []candidates.Candidate {
	tracer := otel.Tracer("selection")
	ctx, span := tracer.Start(ctx, "Selector.Select")
	defer span.End()

	span.SetAttributes(
		attribute.Int("selection.pool_size", len(pool)),
		attribute.Int("selection.cap", s.limit),
	)

	if len(pool) == 0 {
		return nil
	}

	req := request{pool: pool, description: description, names: make([]string, len(pool))}
	for i, item := range pool {
		req.names[i] = NormalizeFilename(item.Name)
	}

	tiers := []struct {
		name string
		run  func(context.Context, request, State) State
	}{
		{TierNumeric, s.numericTier},
		{TierKeyword, s.keywordTier},
		{TierSingle, s.singlesTier},
		{TierRandom, s.randomTier},
	}

	st := NewState()
	for _, tier := range tiers {
		if st.Full(s.limit) || ctx.Err() != nil {
			break
		}
		before := len(st.Candidates)
		st = tier.run(ctx, req, st)
		s.log.Debug("tier %s produced %d candidates", tier.name, len(st.Candidates)-before)
	}

	span.SetAttributes(attribute.Int("selection.candidates", len(st.Candidates)))
	return st.Candidates
}

// loadAll loads the images for one combination concurrently. It returns
// only after every load finished, in the order of indices.
func (s *Selector) loadAll(ctx context.Context, indices []int) ([]image.Image, error) {
	images := make([]image.Image, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, idx := range indices {
		g.Go(func() error {
			img, err := s.loader.Load(gctx, idx)
			if err != nil {
				return fmt.Errorf("load photo %d: %w", idx+1, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// composite loads and lays out the images at indices. Failures are logged
// and counted against tier.
func (s *Selector) composite(ctx context.Context, tier string, indices []int) (*image.NRGBA, bool) {
	images, err := s.loadAll(ctx, indices)
	if err == nil {
		var out *image.NRGBA
		if out, err = s.compositor.Compose(images); err == nil {
			return out, true
		}
	}
	metrics.CompositeFailuresTotal.WithLabelValues(tier).Inc()
	s.log.Warn("skipping %s combination %v: %v", tier, indices, err)
	return nil, false
}

// add emits a candidate and records it in the metrics.
func (s *Selector) add(st State, tier string, c candidates.Candidate, claim bool) State {
	metrics.CandidatesTotal.WithLabelValues(string(c.Kind), tier).Inc()
	return st.emit(tier, c, claim)
}
