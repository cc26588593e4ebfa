package candidates

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// MaxCandidates bounds the number of candidates one run produces.
const MaxCandidates = 12

// Kind discriminates how a candidate's preview was produced.
type Kind string

const (
	// SingleImage previews one pool image as-is.
	SingleImage Kind = "single"
	// CompositeImage previews 2-4 pool images laid out in a grid.
	CompositeImage Kind = "composite"
	// VideoFrame previews one sampled video frame.
	VideoFrame Kind = "frame"
)

// Candidate is one proposed thumbnail.
type Candidate struct {
	ID          string
	Title       string
	Description string
	Preview     image.Image
	Kind        Kind
	// Sources holds the 0-based pool indices used, in grid cell order.
	// Empty for video frames.
	Sources   []int
	Timestamp float64
}

// Size returns the preview dimensions, or 0x0 without a preview.
func (c Candidate) Size() (int, int) {
	if c.Preview == nil {
		return 0, 0
	}
	b := c.Preview.Bounds()
	return b.Dx(), b.Dy()
}

// PhotoNumbers formats 0-based indices as a Spanish list of 1-based photo
// numbers: "1", "1 y 3", "1, 2 y 4".
func PhotoNumbers(indices []int) string {
	nums := make([]string, len(indices))
	for i, idx := range indices {
		nums[i] = strconv.Itoa(idx + 1)
	}
	switch len(nums) {
	case 0:
		return ""
	case 1:
		return nums[0]
	default:
		return strings.Join(nums[:len(nums)-1], ", ") + " y " + nums[len(nums)-1]
	}
}

// PhotoTitle returns "Foto N" for one index and "Fotos N y M" for several.
func PhotoTitle(indices []int) string {
	if len(indices) == 1 {
		return fmt.Sprintf("Foto %d", indices[0]+1)
	}
	return "Fotos " + PhotoNumbers(indices)
}
