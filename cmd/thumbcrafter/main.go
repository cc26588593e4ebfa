package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/handlers"
	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/media"
	"thumbcrafter/internal/memory"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/middleware"
	"thumbcrafter/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = 15 * time.Second
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(memory.ApplyLimit(config.MemoryLimit, config.MemoryRatio))
	gate := memory.NewGate(memory.DefaultConfig())
	gate.Start()

	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, oversized stills will be shrunk with imaging: %v", err)
		}
	}
	startup.LogMediaToolsInit(config, media.IsVipsAvailable())

	decoder := media.NewDecoder(media.Config{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		UseVips:     config.VipsEnabled,
	})
	eng := engine.New(decoder, engine.Config{
		TempDir:       config.TempDir,
		MaxCandidates: config.MaxCandidates,
		MaxFrames:     config.MaxFrames,
		SeekTimeout:   config.SeekTimeout,
		PreviewWidth:  config.PreviewWidth,
		PreviewHeight: config.PreviewHeight,
		LoadWorkers:   config.LoadWorkers,
		Gate:          gate,
	})

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
	collector := metrics.NewCollector(eng, collectorInterval)
	collector.Start()

	h := handlers.New(eng, gate, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of up to MAX_UPLOAD_MB plus a full generation run.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, collector, gate)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate", h.Generate).Methods(http.MethodPost).Name("generate")
	api.HandleFunc("/presets", h.GetPresets).Methods(http.MethodGet).Name("presets")

	return r
}

func newMetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, gate *memory.Gate) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	collector.Stop()
	gate.Stop()
	startup.LogShutdownStepComplete("Background workers stopped")

	media.ShutdownVips()
	startup.LogShutdownComplete()
}
