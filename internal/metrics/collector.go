package metrics

import (
	"time"

	"thumbcrafter/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current engine statistics
type Stats struct {
	RunsStarted        int64
	RunsSuperseded     int64
	InFlight           bool
	LastRunCandidates  int
	OutstandingHandles int
}

// Collector periodically copies engine stats into gauges
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	if stats.InFlight {
		GenerationInFlight.Set(1)
	} else {
		GenerationInFlight.Set(0)
	}
	GenerationLastCandidates.Set(float64(stats.LastRunCandidates))

	logging.Debug("Metrics collected: runs=%d, superseded=%d, in_flight=%v, last_candidates=%d, handles=%d",
		stats.RunsStarted, stats.RunsSuperseded, stats.InFlight, stats.LastRunCandidates, stats.OutstandingHandles)
}
