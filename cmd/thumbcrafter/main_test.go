package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/handlers"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/startup"
)

type idleGenerator struct{}

func (idleGenerator) Generate(context.Context, engine.ProjectInput) engine.Result {
	return engine.Result{Branch: engine.BranchEmpty}
}

func (idleGenerator) GetStats() metrics.Stats { return metrics.Stats{} }

func TestSetupRouter(t *testing.T) {
	h := handlers.New(idleGenerator{}, nil, &startup.Config{FFmpegAvailable: true, FFprobeAvailable: true})
	router := setupRouter(h)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodHead, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/presets", http.StatusOK},
		{http.MethodGet, "/api/generate", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/generate", http.StatusBadRequest},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRoutesAreNamed(t *testing.T) {
	h := handlers.New(idleGenerator{}, nil, &startup.Config{})
	routes, err := startup.GetRoutes(setupRouter(h))
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}

	named := map[string]string{}
	for _, r := range routes {
		if r.Name != "" {
			named[r.Name] = r.Path
		}
	}
	if named["generate"] != "/api/generate" || named["presets"] != "/api/presets" {
		t.Errorf("named routes = %v", named)
	}
}

func TestMetricsServer(t *testing.T) {
	srv := newMetricsServer("0")
	if srv.ReadTimeout <= 0 || srv.WriteTimeout <= 0 {
		t.Error("metrics server timeouts should be set")
	}

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", w.Code)
	}
}
