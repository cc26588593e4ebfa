// Package resources tracks the transient handles a generation run acquires
// (blob views, materialized temp files, video decode sessions) and releases
// them together at the end of the run.
//
// A Tracker is created per run. Every Acquire or Track is recorded, and
// ReleaseAll frees each handle exactly once regardless of whether the run
// succeeded, failed or was superseded. Using a handle after release returns
// ErrReleased.
package resources
