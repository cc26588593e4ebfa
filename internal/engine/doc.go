// Package engine runs thumbnail generation for one project at a time.
//
// A run takes a description plus either a video or a pool of images. A
// video always wins: its frames are sampled and become the candidates. An
// image pool goes through the selection tiers instead. Starting a run
// supersedes the one in flight, which is cancelled and must release every
// handle it acquired before the new run begins.
package engine
