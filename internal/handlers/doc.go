// Package handlers provides the HTTP handlers of the candidate service.
//
// It includes handlers for:
//   - Candidate generation from a multipart upload (POST /api/generate)
//   - Composite styles and export presets (GET /api/presets)
//   - Health, liveness and readiness probes
//   - Version and build information
package handlers
