// Package memory keeps the service inside its container memory limit.
//
// [ApplyLimit] derives GOMEMLIMIT from the container limit (MEMORY_LIMIT,
// usually injected through the Kubernetes Downward API) and a heap ratio
// (MEMORY_RATIO). An explicit GOMEMLIMIT always wins.
//
// A [Gate] samples heap usage and holds back new generation runs while
// usage is above its pause mark, reopening once usage drops below the
// resume mark:
//
//	gate := memory.NewGate(memory.DefaultConfig())
//	gate.Start()
//	defer gate.Stop()
//
//	if err := gate.Wait(ctx); err != nil {
//	    return err
//	}
package memory
