package layout

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"thumbcrafter/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// DefaultWidth is the composite preview width.
	DefaultWidth = 400
	// DefaultHeight is the composite preview height.
	DefaultHeight = 225
	// MaxImages is the largest number of images one composite holds.
	MaxImages = 4
)

// DefaultBackground fills letterbox bars and empty cells.
var DefaultBackground = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}

// ErrImageCount is returned for fewer than 1 or more than 4 images.
var ErrImageCount = errors.New("composite requires 1 to 4 images")

// Grid is a rows x cols cell arrangement.
type Grid struct {
	Rows int
	Cols int
}

// grids maps an image count to its arrangement.
var grids = map[int]Grid{
	1: {Rows: 1, Cols: 1},
	2: {Rows: 1, Cols: 2},
	3: {Rows: 1, Cols: 3},
	4: {Rows: 2, Cols: 2},
}

// GridFor returns the arrangement used for n images.
func GridFor(n int) (Grid, error) {
	g, ok := grids[n]
	if !ok {
		return Grid{}, fmt.Errorf("%d images: %w", n, ErrImageCount)
	}
	return g, nil
}

// Engine composites 1-4 images into a fixed-size raster.
type Engine struct {
	Width      int
	Height     int
	Background color.NRGBA
}

// New returns an Engine producing width x height composites. Non-positive
// sizes select the defaults.
func New(width, height int) *Engine {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Engine{Width: width, Height: height, Background: DefaultBackground}
}

// Cells returns the canvas rectangles for a grid. Cell edges are computed
// from the canvas size so the cells tile it exactly.
func (e *Engine) Cells(g Grid) []image.Rectangle {
	cells := make([]image.Rectangle, 0, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			cells = append(cells, image.Rect(
				c*e.Width/g.Cols, r*e.Height/g.Rows,
				(c+1)*e.Width/g.Cols, (r+1)*e.Height/g.Rows,
			))
		}
	}
	return cells
}

// Fit returns the rectangle an image of size src occupies inside cell:
// letterboxed when the image is relatively wider than the cell, pillarboxed
// otherwise. The result is centered and at least 1x1.
func Fit(src image.Point, cell image.Rectangle) image.Rectangle {
	cw, ch := cell.Dx(), cell.Dy()
	if src.X <= 0 || src.Y <= 0 || cw <= 0 || ch <= 0 {
		return image.Rectangle{Min: cell.Min, Max: cell.Min}
	}

	var w, h int
	// src.X/src.Y > cw/ch, compared without division.
	if src.X*ch > cw*src.Y {
		w = cw
		h = max((src.Y*cw+src.X/2)/src.X, 1)
	} else {
		h = ch
		w = max((src.X*ch+src.Y/2)/src.Y, 1)
	}

	x := cell.Min.X + (cw-w)/2
	y := cell.Min.Y + (ch-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Compose draws images into the grid for len(images), one per cell in
// row-major order, and returns the flattened result. It is deterministic.
func (e *Engine) Compose(images []image.Image) (*image.NRGBA, error) {
	start := time.Now()
	defer func() {
		metrics.CompositeDuration.Observe(time.Since(start).Seconds())
	}()

	g, err := GridFor(len(images))
	if err != nil {
		return nil, err
	}

	canvas := imaging.New(e.Width, e.Height, e.Background)
	for i, cell := range e.Cells(g) {
		if i >= len(images) || images[i] == nil {
			canvas = imaging.Paste(canvas, imaging.New(cell.Dx(), cell.Dy(), e.Background), cell.Min)
			continue
		}

		b := images[i].Bounds()
		dst := Fit(image.Pt(b.Dx(), b.Dy()), cell)
		if dst.Empty() {
			continue
		}
		scaled := imaging.Resize(images[i], dst.Dx(), dst.Dy(), imaging.Lanczos)
		canvas = imaging.Paste(canvas, scaled, dst.Min)
	}

	return canvas, nil
}
