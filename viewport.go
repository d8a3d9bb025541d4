package refract

import "math"

// DefaultMaxPixelRatio bounds the device pixel ratio used to size buffers.
const DefaultMaxPixelRatio = 2

// Viewport is the logical size of the visible surface and the ratio between
// physical and logical pixels.
type Viewport struct {
	Width, Height int
	// PixelRatio is the device pixel ratio. Values <= 0 mean 1.
	PixelRatio float64
}

// Empty reports whether the viewport has no area.
func (v Viewport) Empty() bool { return v.Width <= 0 || v.Height <= 0 }

// Aspect returns width over height, or zero for an empty viewport.
func (v Viewport) Aspect() float64 {
	if v.Empty() {
		return 0
	}
	return float64(v.Width) / float64(v.Height)
}

// Ratio returns the pixel ratio clamped to maxRatio. A maxRatio <= 0 means
// DefaultMaxPixelRatio.
func (v Viewport) Ratio(maxRatio float64) float64 {
	if maxRatio <= 0 {
		maxRatio = DefaultMaxPixelRatio
	}
	r := v.PixelRatio
	if r <= 0 || math.IsNaN(r) {
		r = 1
	}
	return math.Min(r, maxRatio)
}

// Pixels returns the buffer size for the viewport. Each dimension is at
// least one pixel.
func (v Viewport) Pixels(maxRatio float64) (width, height int) {
	r := v.Ratio(maxRatio)
	width = max(1, int(math.Floor(float64(v.Width)*r)))
	height = max(1, int(math.Floor(float64(v.Height)*r)))
	return width, height
}
