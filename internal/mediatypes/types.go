package mediatypes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// FileType represents the broad kind of a media blob.
type FileType string

const (
	// FileTypeImage represents a still image.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported type.
	FileTypeOther FileType = "other"
)

const (
	// MaxImageBytes is the upload limit for a single still image.
	MaxImageBytes int64 = 10 * 1024 * 1024
	// MaxVideoBytes is the default upload limit for a video.
	MaxVideoBytes int64 = 100 * 1024 * 1024
)

var (
	// ErrUnsupportedType is returned when a blob is not an accepted image or video type.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrTooLarge is returned when a blob exceeds its size limit.
	ErrTooLarge = errors.New("media too large")
	// ErrEmpty is returned for zero-length blobs.
	ErrEmpty = errors.New("empty media")
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true, ".avif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

// AcceptedImageTypes lists the MIME types accepted for the image pool.
var AcceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// AcceptedVideoTypes lists the MIME types accepted for the video slot.
var AcceptedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
	"video/x-msvideo": true,
}

// mimeAliases normalizes non-standard MIME names browsers and clients send.
var mimeAliases = map[string]string{
	"image/jpg":     "image/jpeg",
	"video/mov":     "video/quicktime",
	"video/avi":     "video/x-msvideo",
	"video/msvideo": "video/x-msvideo",
}

// preferredExtensions picks one extension per MIME type for temp files.
var preferredExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"image/bmp":        ".bmp",
	"image/tiff":       ".tif",
	"image/heif":       ".heif",
	"image/heic":       ".heic",
	"image/avif":       ".avif",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/x-m4v":      ".m4v",
	"video/mpeg":       ".mpg",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension, or
// "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// KindOf returns the FileType for a MIME type.
func KindOf(mimeType string) FileType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	default:
		return FileTypeOther
	}
}

// NormalizeMIME lowercases a MIME type, drops parameters and maps aliases.
func NormalizeMIME(mimeType string) string {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(m, ";"); idx != -1 {
		m = strings.TrimSpace(m[:idx])
	}
	if alias, ok := mimeAliases[m]; ok {
		return alias
	}
	return m
}

// Sniff detects the MIME type from content. It returns "" when the content
// is not recognized.
func Sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return NormalizeMIME(kind.MIME.Value)
}

// MediaBlob is an immutable handle to caller-owned media bytes.
type MediaBlob struct {
	name     string
	mimeType string
	data     []byte
}

// NewMediaBlob copies data into a new blob. The MIME type is resolved from
// the content when it can be sniffed, from declaredMIME otherwise, and from
// the file extension as a last resort.
func NewMediaBlob(name string, data []byte, declaredMIME string) *MediaBlob {
	buf := make([]byte, len(data))
	copy(buf, data)

	mimeType := Sniff(buf)
	declared := NormalizeMIME(declaredMIME)
	switch {
	case mimeType != "":
		// content wins over the declared type
	case declared != "" && declared != "application/octet-stream":
		mimeType = declared
	default:
		mimeType = GetMimeType(strings.ToLower(filepath.Ext(name)))
	}

	return &MediaBlob{name: name, mimeType: mimeType, data: buf}
}

// Name returns the original file name.
func (b *MediaBlob) Name() string { return b.name }

// MIMEType returns the resolved MIME type.
func (b *MediaBlob) MIMEType() string { return b.mimeType }

// Size returns the byte length.
func (b *MediaBlob) Size() int64 { return int64(len(b.data)) }

// Kind returns the broad media kind.
func (b *MediaBlob) Kind() FileType { return KindOf(b.mimeType) }

// Reader returns a new reader over the blob bytes.
func (b *MediaBlob) Reader() *bytes.Reader { return bytes.NewReader(b.data) }

// WriteTo copies the blob bytes to w.
func (b *MediaBlob) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// Extension returns a file extension suitable for the blob's MIME type,
// preferring the original name's extension.
func (b *MediaBlob) Extension() string {
	if ext := strings.ToLower(filepath.Ext(b.name)); ext != "" && MimeTypes[ext] == b.mimeType {
		return ext
	}
	if ext, ok := preferredExtensions[b.mimeType]; ok {
		return ext
	}
	return ".bin"
}

// Limits holds per-kind upload size limits in bytes.
type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

// DefaultLimits returns the 10 MB image / 100 MB video limits.
func DefaultLimits() Limits {
	return Limits{MaxImageBytes: MaxImageBytes, MaxVideoBytes: MaxVideoBytes}
}

// ValidateImage checks that the blob is an accepted still image within limits.
func ValidateImage(b *MediaBlob, limits Limits) error {
	if b.Size() == 0 {
		return fmt.Errorf("%s: %w", b.name, ErrEmpty)
	}
	if !AcceptedImageTypes[b.mimeType] {
		return fmt.Errorf("%s (%s): %w", b.name, b.mimeType, ErrUnsupportedType)
	}
	if limits.MaxImageBytes > 0 && b.Size() > limits.MaxImageBytes {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", b.name, b.Size(), limits.MaxImageBytes, ErrTooLarge)
	}
	return nil
}

// ValidateVideo checks that the blob is an accepted video within limits.
func ValidateVideo(b *MediaBlob, limits Limits) error {
	if b.Size() == 0 {
		return fmt.Errorf("%s: %w", b.name, ErrEmpty)
	}
	if !AcceptedVideoTypes[b.mimeType] {
		return fmt.Errorf("%s (%s): %w", b.name, b.mimeType, ErrUnsupportedType)
	}
	if limits.MaxVideoBytes > 0 && b.Size() > limits.MaxVideoBytes {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", b.name, b.Size(), limits.MaxVideoBytes, ErrTooLarge)
	}
	return nil
}
