package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"thumbcrafter/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg, libvips and goroutine stacks.
const DefaultMemoryRatio = 0.75

// Limit sources reported in LimitResult.Source.
const (
	SourceGOMEMLIMIT  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// LimitResult describes how the Go memory limit was configured.
type LimitResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ApplyLimit sets the Go soft memory limit to ratio * containerLimit.
// An explicit GOMEMLIMIT in the environment takes precedence and is only
// reported. A ratio outside (0, 1] falls back to DefaultMemoryRatio.
func ApplyLimit(containerLimit int64, ratio float64) LimitResult {
	log := logging.Component("memory")

	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := LimitResult{Source: SourceGOMEMLIMIT}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		log.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	if containerLimit <= 0 {
		log.Debug("no container memory limit, GOMEMLIMIT not configured")
		return LimitResult{Source: SourceNone}
	}

	if ratio <= 0 || ratio > 1 {
		if ratio != 0 {
			log.Warn("memory ratio %.2f out of range (0.0-1.0], using %.2f", ratio, DefaultMemoryRatio)
		}
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	log.Info("configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(containerLimit))

	return LimitResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// CurrentLimit returns the Go soft memory limit, or 0 when unlimited.
func CurrentLimit() int64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit >= math.MaxInt64 {
		return 0
	}
	return limit
}

// FormatBytes formats b with binary units, e.g. "1.5 GiB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
