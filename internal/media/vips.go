package media

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"thumbcrafter/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogLevel maps the application log level to the most verbose libvips
// level that should still be forwarded. libvips levels are GLib flags, so a
// larger value is more verbose.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func vipsLogHandler(threshold vips.LogLevel) func(string, vips.LogLevel, string) {
	log := logging.Component("vips")
	return func(domain string, level vips.LogLevel, msg string) {
		if level > threshold {
			return
		}
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			log.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			log.Warn("[%s] %s", domain, msg)
		default:
			log.Debug("[%s] %s", domain, msg)
		}
	}
}

// InitVips initializes the libvips library.
// This should be called once at startup, before any decoding.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Logging must be configured before Startup to respect LOG_LEVEL.
	threshold := vipsLogLevel(logging.GetLevel())
	vips.LoggingSettings(vipsLogHandler(threshold), threshold)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// ShrinkWithVips decodes an encoded still and shrinks it to fit within
// targetWidth x targetHeight. libvips shrinks JPEGs during decode, so the
// full-resolution raster never exists in memory.
func ShrinkWithVips(data []byte, targetWidth, targetHeight int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	logging.Debug("vips loaded %dx%d, shrinking to %dx%d", ref.Width(), ref.Height(), targetWidth, targetHeight)

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips autorotate failed: %w", err)
	}
	if err := ref.Thumbnail(targetWidth, targetHeight, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	pngBytes, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
