// Package logging provides the leveled logger used across the thumbnail
// candidate engine.
//
// It supports the following log levels:
//   - DEBUG: Per-seek and per-combination tracing
//   - INFO: Run summaries and startup configuration
//   - WARN: Skipped combinations, failed samplers, release errors
//   - ERROR: Conditions that abort a request
//   - FATAL: Startup errors that terminate the process
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). Engine stages log through a component Logger so every line
// carries the stage name.
package logging
