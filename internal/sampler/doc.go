// Package sampler extracts evenly spaced still frames from a video.
//
// A Sampler opens a Session, reads its duration (falling back to one second
// when the decoder reports none) and walks timestamps t_i = i*D/N for
// i = 0..N-1. Each step is an explicit Idle -> Seeking -> Captured cycle:
// exactly one seek is outstanding at any time, and the next seek is issued
// only after the previous frame was copied out. Sampling is all-or-nothing;
// a failed open, seek, capture, timeout or cancellation yields no frames.
package sampler
