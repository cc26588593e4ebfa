package handlers

import (
	"net/http"
	"runtime"
	"time"

	"thumbcrafter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	VideoEnabled bool `json:"videoEnabled"`
	MemoryPaused bool    `json:"memoryPaused"`
	MemoryUsage  float64 `json:"memoryUsage"`

	// Generation info
	RunsStarted       int64 `json:"runsStarted"`
	RunsSuperseded    int64 `json:"runsSuperseded"`
	RunInFlight       bool  `json:"runInFlight"`
	LastRunCandidates int   `json:"lastRunCandidates"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

func (h *Handlers) paused() bool {
	return h.pauser != nil && h.pauser.Paused()
}

// HealthCheck returns the health status of the service. Missing video
// tooling degrades the service but keeps it up.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.generator.GetStats()

	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             !h.paused(),
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		VideoEnabled:      h.videoReady,
		MemoryPaused:      h.paused(),
		RunsStarted:       stats.RunsStarted,
		RunsSuperseded:    stats.RunsSuperseded,
		RunInFlight:       stats.InFlight,
		LastRunCandidates: stats.LastRunCandidates,
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}
	if h.pauser != nil {
		response.MemoryUsage = h.pauser.Usage()
	}
	if !h.videoReady {
		response.Status = statusDegraded
	}

	writeJSONStatus(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 503 while memory pressure holds back new runs
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.paused() {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}
