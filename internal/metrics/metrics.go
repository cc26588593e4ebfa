package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcrafter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Generation run metrics
var (
	GenerationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_generation_runs_total",
			Help: "Total number of generation runs by branch (video/images/empty) and outcome",
		},
		[]string{"branch", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcrafter_generation_duration_seconds",
			Help:    "Generation run duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"branch"},
	)

	GenerationRunsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcrafter_generation_runs_superseded_total",
			Help: "Total number of in-flight runs cancelled by a newer run",
		},
	)

	GenerationInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_generation_in_flight",
			Help: "Whether a generation run is currently active (1 = running, 0 = idle)",
		},
	)

	GenerationLastCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_generation_last_candidates",
			Help: "Number of candidates returned by the last completed run",
		},
	)

	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_candidates_total",
			Help: "Total number of candidates produced by kind and selection tier",
		},
		[]string{"kind", "tier"},
	)
)

// Sampler metrics
var (
	SamplerFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcrafter_sampler_frames_total",
			Help: "Total number of video frames captured",
		},
	)

	SamplerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_sampler_failures_total",
			Help: "Total number of failed sampling runs by stage",
		},
		[]string{"stage"},
	)

	SamplerSeekDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbcrafter_sampler_seek_duration_seconds",
			Help:    "Time from seek request to frame capture",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Compositing and decode metrics
var (
	CompositeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_composite_failures_total",
			Help: "Total number of skipped combinations by selection tier",
		},
		[]string{"tier"},
	)

	CompositeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbcrafter_composite_duration_seconds",
			Help:    "Duration of loading and compositing one combination",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ImageDecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_image_decode_total",
			Help: "Total number of still image decodes by decode path and status",
		},
		[]string{"path", "status"},
	)

	FFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcrafter_ffmpeg_duration_seconds",
			Help:    "Duration of ffmpeg/ffprobe invocations by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// Resource metrics
var (
	ResourceHandlesOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_resource_handles_outstanding",
			Help: "Number of acquired resource handles not yet released",
		},
	)

	ResourceHandlesAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcrafter_resource_handles_acquired_total",
			Help: "Total number of resource handles acquired by kind",
		},
		[]string{"kind"},
	)

	ResourceReleaseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcrafter_resource_release_errors_total",
			Help: "Total number of errors while releasing resource handles",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_memory_paused",
			Help: "1 while new generation runs are held back by memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcrafter_memory_gc_pauses_total",
			Help: "Total number of times memory pressure paused generation and forced a GC",
		},
	)
)

// Build info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcrafter_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
