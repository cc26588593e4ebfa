// Command thumbcrafter serves thumbnail candidate generation over HTTP.
//
// A client posts a project (a free-text description plus either a video or
// a set of photos) to /api/generate and receives up to twelve candidate
// thumbnails with JPEG, PNG or WebP previews. A new request supersedes the
// one in flight; the superseded request is answered with 409 Conflict.
//
// # Application Lifecycle
//
//  1. Configuration Loading: environment variables, temp directory check
//  2. Memory: GOMEMLIMIT from MEMORY_LIMIT, then the generation gate
//  3. Media Tools: libvips startup, ffmpeg/ffprobe availability
//  4. Engine and Metrics Collector
//  5. HTTP Server: routes, access logging, metrics, compression
//  6. Graceful Shutdown on SIGINT/SIGTERM
//
// # Endpoints
//
//	POST /api/generate   multipart: description, video, images[]
//	GET  /api/presets    composite styles and export presets
//	GET  /health         health with generation statistics
//	GET  /livez /readyz  probes; readyz fails under memory pressure
//	GET  /version        build information
//	GET  /metrics        Prometheus metrics (on METRICS_PORT)
//
// See package startup for the environment variables.
package main
