package render

import (
	"image"
	"image/draw"
	"math"

	"github.com/fogleman/fauxgl"
)

// Texture is an immutable resolved color image that shaders sample from.
// Texture coordinates follow the GL convention: (0,0) is the bottom left
// corner of the image and (1,1) the top right.
type Texture struct {
	img *image.NRGBA
}

// NewTexture copies img into a texture.
func NewTexture(img image.Image) *Texture {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Texture{img: dst}
}

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (width, height int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image returns the texture contents. The image must not be modified.
func (t *Texture) Image() *image.NRGBA { return t.img }

// At returns the texel at column x and row y counted from the top of the
// image. Coordinates outside the image are clamped to the edge.
func (t *Texture) At(x, y int) fauxgl.Color {
	w, h := t.Size()
	x = clampInt(x, 0, w-1)
	y = clampInt(y, 0, h-1)
	i := t.img.PixOffset(x, y)
	p := t.img.Pix[i : i+4 : i+4]
	return fauxgl.Color{
		R: float64(p[0]) / 255,
		G: float64(p[1]) / 255,
		B: float64(p[2]) / 255,
		A: float64(p[3]) / 255,
	}
}

// Sample returns the bilinearly filtered color at texture coordinates
// (u,v). Texel centers lie at half integer coordinates and lookups outside
// [0,1] clamp to the edge.
func (t *Texture) Sample(u, v float64) fauxgl.Color {
	w, h := t.Size()
	if math.IsNaN(u) || math.IsNaN(v) {
		u, v = 0, 0
	}
	x := clampFloat(u*float64(w)-0.5, -1, float64(w))
	y := clampFloat((1-v)*float64(h)-0.5, -1, float64(h))
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	c00 := t.At(ix, iy)
	c10 := t.At(ix+1, iy)
	c01 := t.At(ix, iy+1)
	c11 := t.At(ix+1, iy+1)
	top := c00.MulScalar(1 - fx).Add(c10.MulScalar(fx))
	bottom := c01.MulScalar(1 - fx).Add(c11.MulScalar(fx))
	return top.MulScalar(1 - fy).Add(bottom.MulScalar(fy))
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampFloat(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
