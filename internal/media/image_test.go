package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os/exec"
	"testing"

	"thumbcrafter/internal/mediatypes"
	"thumbcrafter/internal/resources"
)

// gradientImage creates a test image with a gradient pattern so resizing
// is observable.
func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func encodeTestImage(t *testing.T, img image.Image, format string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, img)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func acquireBlob(t *testing.T, name string, data []byte) *resources.Handle {
	t.Helper()

	tr := resources.NewTracker(t.TempDir(), "test")
	t.Cleanup(func() { _ = tr.ReleaseAll() })

	h, err := tr.Acquire(mediatypes.NewMediaBlob(name, data, ""))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	return h
}

func TestGetImageDimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		format string
	}{
		{"Small JPEG", 100, 100, "jpeg"},
		{"Wide PNG", 320, 90, "png"},
		{"Tall JPEG", 50, 400, "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeTestImage(t, gradientImage(tt.width, tt.height), tt.format)

			dims, err := GetImageDimensions(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("GetImageDimensions() error = %v", err)
			}
			if dims.Width != tt.width || dims.Height != tt.height {
				t.Errorf("GetImageDimensions() = %dx%d, want %dx%d", dims.Width, dims.Height, tt.width, tt.height)
			}
		})
	}
}

func TestGetImageDimensionsInvalid(t *testing.T) {
	if _, err := GetImageDimensions(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Error("Expected error for invalid data, got nil")
	}
}

func TestConstrainDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxDim        int
		maxPixels     int
		wantW, wantH  int
		wantConstrain bool
	}{
		{"within limits", 800, 600, 4096, 20_000_000, 800, 600, false},
		{"too wide", 8000, 2000, 4096, 20_000_000, 4096, 1024, true},
		{"too tall", 1000, 5000, 4096, 20_000_000, 819, 4096, true},
		{"too many pixels", 4000, 4000, 4096, 4_000_000, 2000, 2000, true},
		{"zero size", 0, 0, 4096, 20_000_000, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := ConstrainDimensions(tt.width, tt.height, tt.maxDim, tt.maxPixels)
			if w != tt.wantW || h != tt.wantH || ok != tt.wantConstrain {
				t.Errorf("ConstrainDimensions() = (%d, %d, %v), want (%d, %d, %v)",
					w, h, ok, tt.wantW, tt.wantH, tt.wantConstrain)
			}
		})
	}
}

func TestDecodeImage(t *testing.T) {
	d := NewDecoder(Config{})

	tests := []struct {
		name   string
		width  int
		height int
		format string
	}{
		{"JPEG", 120, 80, "jpeg"},
		{"PNG", 64, 64, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := acquireBlob(t, "img."+tt.format, encodeTestImage(t, gradientImage(tt.width, tt.height), tt.format))

			img, err := d.DecodeImage(context.Background(), h)
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("DecodeImage() size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
		})
	}
}

func TestDecodeImageConstrained(t *testing.T) {
	d := NewDecoder(Config{MaxDimension: 100, MaxPixels: 1_000_000})
	h := acquireBlob(t, "big.png", encodeTestImage(t, gradientImage(400, 200), "png"))

	img, err := d.DecodeImage(context.Background(), h)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("DecodeImage() size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestDecodeImageInvalid(t *testing.T) {
	d := NewDecoder(Config{FFmpegPath: "ffmpeg-that-does-not-exist"})
	h := acquireBlob(t, "broken.jpg", []byte("this is not an image"))

	_, err := d.DecodeImage(context.Background(), h)
	if !errors.Is(err, ErrNoDecoder) {
		t.Errorf("DecodeImage() error = %v, want ErrNoDecoder", err)
	}
}

func TestDecodeImageReleasedHandle(t *testing.T) {
	tr := resources.NewTracker(t.TempDir(), "released")
	h, err := tr.Acquire(mediatypes.NewMediaBlob("a.png", encodeTestImage(t, gradientImage(8, 8), "png"), ""))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll() error = %v", err)
	}

	d := NewDecoder(Config{})
	if _, err := d.DecodeImage(context.Background(), h); !errors.Is(err, resources.ErrReleased) {
		t.Errorf("DecodeImage() error = %v, want ErrReleased", err)
	}
}

func TestDecodeImageFFmpegFallback(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping fallback test")
	}

	// BMP is not registered with the Go decoders used here, so only ffmpeg
	// can read it.
	data := bmpBytes(16, 8)
	h := acquireBlob(t, "legacy.bmp", data)

	img, err := NewDecoder(Config{}).DecodeImage(context.Background(), h)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("DecodeImage() size = %dx%d, want 16x8", b.Dx(), b.Dy())
	}
}

// bmpBytes builds an uncompressed 24-bit BMP.
func bmpBytes(width, height int) []byte {
	rowSize := (width*3 + 3) &^ 3
	pixelBytes := rowSize * height
	fileSize := 54 + pixelBytes

	buf := make([]byte, fileSize)
	le32 := func(off, v int) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	buf[0], buf[1] = 'B', 'M'
	le32(2, fileSize)
	le32(10, 54)
	le32(14, 40)
	le32(18, width)
	le32(22, height)
	buf[26] = 1
	buf[28] = 24
	le32(34, pixelBytes)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := 54 + y*rowSize + x*3
			buf[off] = 200
			buf[off+1] = 100
			buf[off+2] = 50
		}
	}
	return buf
}
