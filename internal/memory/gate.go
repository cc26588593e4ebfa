package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/metrics"
)

// ErrGateStopped is returned by Wait once the gate has been stopped.
var ErrGateStopped = errors.New("memory gate stopped")

// Config configures a Gate.
type Config struct {
	// LimitBytes is the reference limit; 0 uses the Go soft memory limit.
	LimitBytes int64
	// ResumeMark is the usage ratio below which a paused gate reopens.
	ResumeMark float64
	// PauseMark is the usage ratio at which new runs are held back.
	PauseMark     float64
	CheckInterval time.Duration
}

// DefaultConfig returns the default gate settings.
func DefaultConfig() Config {
	return Config{
		ResumeMark:    0.7,
		PauseMark:     0.85,
		CheckInterval: 2 * time.Second,
	}
}

// Validate checks that the marks are ordered ratios and the interval is set.
func (c Config) Validate() error {
	switch {
	case c.ResumeMark <= 0 || c.ResumeMark > 1:
		return fmt.Errorf("resume mark %.2f must be in (0, 1]", c.ResumeMark)
	case c.PauseMark <= 0 || c.PauseMark > 1:
		return fmt.Errorf("pause mark %.2f must be in (0, 1]", c.PauseMark)
	case c.ResumeMark > c.PauseMark:
		return fmt.Errorf("resume mark %.2f above pause mark %.2f", c.ResumeMark, c.PauseMark)
	case c.CheckInterval <= 0:
		return fmt.Errorf("check interval must be positive")
	}
	return nil
}

// Gate holds back new generation runs while heap usage is above the pause
// mark. Decoding stills and frames allocates whole rasters, so runs started
// under pressure are the usual cause of OOM kills.
type Gate struct {
	cfg   Config
	limit int64
	alloc func() uint64
	log   *logging.Logger

	mu      sync.Mutex
	current uint64
	paused  bool
	resume  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewGate creates a gate. Without a limit the gate never closes.
func NewGate(cfg Config) *Gate {
	limit := cfg.LimitBytes
	if limit == 0 {
		limit = CurrentLimit()
	}

	g := &Gate{
		cfg:    cfg,
		limit:  limit,
		alloc:  heapAlloc,
		log:    logging.Component("memory"),
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
	if limit == 0 {
		g.log.Warn("no memory limit configured, generation gate disabled")
	} else {
		g.log.Info("generation gate: pause at %.0f%%, resume at %.0f%% of %s",
			cfg.PauseMark*100, cfg.ResumeMark*100, FormatBytes(limit))
	}
	return g
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start samples memory usage every CheckInterval until Stop.
func (g *Gate) Start() {
	if g.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(g.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Check()
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter with ErrGateStopped.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Check samples heap usage once and opens or closes the gate.
func (g *Gate) Check() {
	if g.limit == 0 {
		return
	}
	alloc := g.alloc()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.current = alloc
	usage := float64(alloc) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= g.cfg.PauseMark && !g.paused:
		g.log.Warn("memory at %.1f%% of limit, holding back new runs", usage*100)
		g.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < g.cfg.ResumeMark && g.paused:
		g.log.Info("memory recovered (%.1f%% of limit), resuming runs", usage*100)
		g.paused = false
		metrics.MemoryPaused.Set(0)
		close(g.resume)
		g.resume = make(chan struct{})
	}
}

// Wait blocks while the gate is closed.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	resume := g.resume
	g.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-g.stop:
		return ErrGateStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether new runs are currently held back.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Usage returns the last sampled usage ratio, 0 without a limit.
func (g *Gate) Usage() float64 {
	if g.limit == 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(g.current) / float64(g.limit)
}
