package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/resources"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height we'll process.
	// Larger images are shrunk while decoding.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll process.
	MaxImagePixels = 20_000_000 // ~20MP, uses ~80MB in NRGBA
)

// ErrNoDecoder is returned when every decode path failed.
var ErrNoDecoder = errors.New("no decoder could read image")

// Config configures a Decoder.
type Config struct {
	FFmpegPath   string
	FFprobePath  string
	UseVips      bool
	MaxDimension int
	MaxPixels    int
}

// Decoder turns tracked media handles into rasters. Stills go through
// imaging first, then libvips for oversized inputs, then an ffmpeg pipe.
type Decoder struct {
	ffmpeg       string
	ffprobe      string
	useVips      bool
	maxDimension int
	maxPixels    int
	log          *logging.Logger
}

// NewDecoder creates a Decoder, filling unset limits and binary paths with
// defaults.
func NewDecoder(cfg Config) *Decoder {
	d := &Decoder{
		ffmpeg:       cfg.FFmpegPath,
		ffprobe:      cfg.FFprobePath,
		useVips:      cfg.UseVips,
		maxDimension: cfg.MaxDimension,
		maxPixels:    cfg.MaxPixels,
		log:          logging.Component("media"),
	}
	if d.ffmpeg == "" {
		d.ffmpeg = "ffmpeg"
	}
	if d.ffprobe == "" {
		d.ffprobe = "ffprobe"
	}
	if d.maxDimension <= 0 {
		d.maxDimension = MaxImageDimension
	}
	if d.maxPixels <= 0 {
		d.maxPixels = MaxImagePixels
	}
	return d
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(r io.Reader) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// ConstrainDimensions returns the size an image of width x height should be
// shrunk to so that it fits both limits, and whether shrinking is needed.
func ConstrainDimensions(width, height, maxDimension, maxPixels int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return width, height, false
	}
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	targetWidth, targetHeight := width, height
	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := float64(maxPixels) / float64(targetPixels)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	return max(targetWidth, 1), max(targetHeight, 1), true
}

// DecodeImage decodes the still behind h. The result is never larger than
// the configured limits.
func (d *Decoder) DecodeImage(ctx context.Context, h *resources.Handle) (image.Image, error) {
	r, err := h.Reader()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.Name(), err)
	}

	targetWidth, targetHeight, constrain := 0, 0, false
	if dims, err := GetImageDimensions(bytes.NewReader(data)); err == nil {
		targetWidth, targetHeight, constrain = ConstrainDimensions(dims.Width, dims.Height, d.maxDimension, d.maxPixels)
		d.log.Debug("%s dimensions: %dx%d", h.Name(), dims.Width, dims.Height)
	} else {
		d.log.Debug("could not read dimensions for %s: %v", h.Name(), err)
	}

	if constrain && d.useVips && IsVipsAvailable() {
		img, err := ShrinkWithVips(data, targetWidth, targetHeight)
		if err == nil {
			metrics.ImageDecodeTotal.WithLabelValues("vips", "success").Inc()
			return img, nil
		}
		metrics.ImageDecodeTotal.WithLabelValues("vips", "error").Inc()
		d.log.Debug("vips shrink failed for %s: %v, falling back to imaging", h.Name(), err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		metrics.ImageDecodeTotal.WithLabelValues("imaging", "success").Inc()
		if constrain {
			d.log.Info("Constraining large image %s to %dx%d", h.Name(), targetWidth, targetHeight)
			return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
		}
		return img, nil
	}
	metrics.ImageDecodeTotal.WithLabelValues("imaging", "error").Inc()
	d.log.Debug("imaging decode failed for %s: %v, trying ffmpeg fallback", h.Name(), err)

	img, ffErr := d.decodeWithFFmpeg(ctx, h)
	if ffErr != nil {
		metrics.ImageDecodeTotal.WithLabelValues("ffmpeg", "error").Inc()
		return nil, fmt.Errorf("%w %s: %w", ErrNoDecoder, h.Name(), errors.Join(err, ffErr))
	}
	metrics.ImageDecodeTotal.WithLabelValues("ffmpeg", "success").Inc()

	if w, hgt, ok := ConstrainDimensions(img.Bounds().Dx(), img.Bounds().Dy(), d.maxDimension, d.maxPixels); ok {
		return imaging.Resize(img, w, hgt, imaging.Lanczos), nil
	}
	return img, nil
}

// decodeWithFFmpeg decodes formats the Go decoders do not understand by
// asking ffmpeg for a single PNG frame.
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, h *resources.Handle) (image.Image, error) {
	path, err := h.Path()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := d.runFFmpeg(ctx,
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	metrics.FFmpegDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
