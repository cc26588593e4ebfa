// Package media decodes the media behind tracked resource handles.
//
// Stills are decoded with imaging (auto-orientation on). Images larger than
// MaxImageDimension or MaxImagePixels are shrunk while decoding, through
// libvips when it is initialized. Formats the Go decoders cannot read fall
// back to a single-frame ffmpeg PNG pipe.
//
// Videos are opened as a VideoSession: ffprobe reports duration and size,
// and each Seek extracts one frame with ffmpeg in the background.
package media
