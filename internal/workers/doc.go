/*
Package workers sizes the worker pools used while generating candidates.

Worker counts are derived from GOMAXPROCS, which Go 1.19+ sets from the
container CPU limit, rather than runtime.NumCPU, which reports host CPUs.

	// Concurrent image loads for one composite (at most 4 images)
	n := workers.ForLoads(cfg.LoadWorkers, 4)

The LOAD_WORKERS environment variable overrides the CPU-derived count.
*/
package workers
