// Package mediatypes defines MediaBlob, the immutable caller-owned media
// handle the candidate engine reads from, plus the MIME and extension tables
// used to classify and validate uploads.
//
// # Type Resolution
//
// NewMediaBlob resolves the MIME type in order of trust:
//
//	content sniffing (h2non/filetype)  -> "image/png"
//	declared type from the client      -> "video/quicktime"
//	file extension                     -> GetMimeType(".webm")
//
// Non-standard names such as "video/mov" or "image/jpg" are normalized.
//
// # Validation
//
// ValidateImage and ValidateVideo enforce the accepted upload types
// (jpeg, png, webp, gif / mp4, mov, webm, avi) and the per-kind size limits
// (10 MB per image, 100 MB per video by default).
package mediatypes
