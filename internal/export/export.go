package export

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// DefaultQuality is the lossy quality used for jpeg and webp.
const DefaultQuality = 85

var (
	// ErrUnknownPreset is returned for a preset name not in Presets.
	ErrUnknownPreset = errors.New("unknown export preset")
	// ErrUnknownFormat is returned for an unsupported output format.
	ErrUnknownFormat = errors.New("unknown export format")
)

// Preset is a named target size.
type Preset struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Format is an output encoding.
type Format string

// Supported formats.
const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// Presets lists the export targets by name.
var Presets = map[string]Preset{
	"preview":   {Name: "preview", Width: 400, Height: 225},
	"youtube":   {Name: "youtube", Width: 1280, Height: 720},
	"instagram": {Name: "instagram", Width: 1080, Height: 1080},
	"tiktok":    {Name: "tiktok", Width: 1080, Height: 1920},
}

// PresetNames returns the preset names in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the preset with the given name, case-insensitively.
// An empty name selects "preview".
func LookupPreset(name string) (Preset, error) {
	if name == "" {
		name = "preview"
	}
	p, ok := Presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("%q: %w", name, ErrUnknownPreset)
	}
	return p, nil
}

// ParseFormat accepts jpeg, jpg, png and webp. An empty string is jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// ContentType returns the MIME type.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Options controls Encode.
type Options struct {
	Preset  string
	Format  Format
	Quality int
}

// Render scales and center-crops img to fill the preset.
func Render(img image.Image, preset Preset) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == preset.Width && b.Dy() == preset.Height {
		return imaging.Clone(img)
	}
	return imaging.Fill(img, preset.Width, preset.Height, imaging.Center, imaging.Lanczos)
}

// Encode renders img for opts.Preset and writes it to w in opts.Format.
func Encode(w io.Writer, img image.Image, opts Options) error {
	preset, err := LookupPreset(opts.Preset)
	if err != nil {
		return err
	}
	format := opts.Format
	if format == "" {
		format = JPEG
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	out := Render(img, preset)

	switch format {
	case JPEG:
		err = jpeg.Encode(w, out, &jpeg.Options{Quality: quality})
	case PNG:
		err = png.Encode(w, out)
	case WebP:
		err = webp.Encode(w, out, &webp.Options{Quality: float32(quality)})
	default:
		return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}
