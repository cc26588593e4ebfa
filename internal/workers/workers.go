package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that fixes the worker count.
const EnvOverride = "LOAD_WORKERS"

// Count returns the number of workers for a task with the given
// worker-per-CPU multiplier. It respects container CPU limits via
// GOMAXPROCS. The limit parameter caps the result; use 0 for no limit.
//
// Can be overridden with the LOAD_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
// The limit parameter caps the maximum number of workers.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForLoads returns the number of concurrent image loads for one
// combination. A positive configured value wins over the CPU-derived
// count; both are capped at limit.
func ForLoads(configured, limit int) int {
	if configured > 0 {
		return capAt(configured, limit)
	}
	return ForIO(limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
