package metrics

// Label values shared with the engine packages.
var (
	Branches       = []string{"video", "images", "empty"}
	Outcomes       = []string{"success", "empty", "superseded"}
	Kinds          = []string{"single", "composite", "frame"}
	Tiers          = []string{"numeric", "keyword", "single", "random", "frame"}
	SamplerStages  = []string{"open", "seek", "capture", "timeout", "cancelled"}
	DecodePaths    = []string{"imaging", "vips", "ffmpeg"}
	FFmpegOps      = []string{"probe", "frame", "decode"}
	ResourceKinds  = []string{"blob", "closer"}
	decodeStatuses = []string{"success", "error"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, b := range Branches {
		GenerationDuration.WithLabelValues(b)
		for _, o := range Outcomes {
			GenerationRunsTotal.WithLabelValues(b, o)
		}
	}

	tierKinds := map[string]string{
		"numeric": "composite",
		"keyword": "composite",
		"random":  "composite",
		"single":  "single",
		"frame":   "frame",
	}
	for _, tier := range Tiers {
		CandidatesTotal.WithLabelValues(tierKinds[tier], tier)
		if tier != "frame" {
			CompositeFailuresTotal.WithLabelValues(tier)
		}
	}

	for _, stage := range SamplerStages {
		SamplerFailuresTotal.WithLabelValues(stage)
	}

	for _, p := range DecodePaths {
		for _, s := range decodeStatuses {
			ImageDecodeTotal.WithLabelValues(p, s)
		}
	}

	for _, op := range FFmpegOps {
		FFmpegDuration.WithLabelValues(op)
	}

	for _, k := range ResourceKinds {
		ResourceHandlesAcquired.WithLabelValues(k)
	}
}
