// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is parsed from environment variables with
// github.com/caarlos0/env by [ParseConfig]; [LoadConfig] additionally prints
// the banner and prepares the temp directory. Supported variables:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - TEMP_DIR: Directory for per-run scratch files (default: os.TempDir)
//   - MAX_CANDIDATES: Candidates per run, at most 12 (default: 12)
//   - MAX_FRAMES: Frames sampled from a video (default: 12)
//   - SEEK_TIMEOUT: Bound on a single frame seek (default: 10s)
//   - PREVIEW_WIDTH, PREVIEW_HEIGHT: Composite canvas (default: 400x225)
//   - LOAD_WORKERS: Concurrent image loads per composite (default: auto)
//   - FFMPEG_PATH, FFPROBE_PATH: Media tool binaries
//   - VIPS_ENABLED: Use libvips to shrink oversized stills (default: true)
//   - MAX_UPLOAD_MB: Per-video upload limit (default: 100)
//   - MEMORY_LIMIT, MEMORY_RATIO: Container limit and heap share for GOMEMLIMIT
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMediaToolsInit]: ffmpeg/ffprobe availability
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
