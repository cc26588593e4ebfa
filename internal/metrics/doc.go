// Package metrics provides Prometheus instrumentation for the thumbnail
// candidate engine.
//
// All metrics are prefixed with "thumbcrafter_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Generation Metrics
//   - GenerationRunsTotal: runs by branch (video/images/empty) and outcome
//   - GenerationDuration: run duration by branch
//   - GenerationRunsSuperseded: runs cancelled by a newer run
//   - GenerationInFlight, GenerationLastCandidates: refreshed by the Collector
//   - CandidatesTotal: candidates by kind and selection tier
//
// ## Sampler Metrics
//   - SamplerFramesTotal, SamplerFailuresTotal (by stage), SamplerSeekDuration
//
// ## Compositing Metrics
//   - CompositeFailuresTotal (by tier), CompositeDuration
//   - ImageDecodeTotal (by decode path and status), FFmpegDuration
//
// ## Resource Metrics
//   - ResourceHandlesOutstanding: must return to zero after every run
//   - ResourceHandlesAcquired, ResourceReleaseErrors
//
// ## Memory Metrics
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses: set by the memory gate
//
// Call InitializeMetrics once at startup so every label set is exported from
// the first scrape.
package metrics
