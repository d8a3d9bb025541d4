package render

import (
	"fmt"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
)

// Target is a color and depth buffer that a Device renders into. Multisampled
// targets render at a higher resolution and are downsampled when resolved.
// Targets are never resized; a new one is allocated instead.
type Target struct {
	width, height int
	samples       int
	// factor is the supersampling factor per axis.
	factor int

	ctx       *fauxgl.Context
	tex       *Texture
	released  bool
	onRelease func()
}

func newTarget(width, height, samples, factor int) *Target {
	ctx := fauxgl.NewContext(width*factor, height*factor)
	ctx.Cull = fauxgl.CullNone
	return &Target{
		width:   width,
		height:  height,
		samples: samples,
		factor:  factor,
		ctx:     ctx,
	}
}

// Size returns the resolved size of the target in pixels.
func (t *Target) Size() (width, height int) { return t.width, t.height }

// Samples returns the number of samples per pixel.
func (t *Target) Samples() int { return t.samples }

// Texture returns the color texture produced by the last render into t, or
// nil if nothing was rendered yet. A texture is never modified after it is
// returned so it remains valid after later renders or after Release.
func (t *Target) Texture() *Texture { return t.tex }

// Image returns the resolved color buffer of the last render, or nil.
func (t *Target) Image() *image.NRGBA {
	if t.tex == nil {
		return nil
	}
	return t.tex.img
}

// Released reports whether Release was called.
func (t *Target) Released() bool { return t.released }

// Release frees the target's buffers. Rendering into a released target is an
// error. Release is idempotent.
func (t *Target) Release() {
	if t.released {
		return
	}
	t.released = true
	t.ctx = nil
	if t.onRelease != nil {
		t.onRelease()
	}
}

func (t *Target) String() string {
	return fmt.Sprintf("%dx%d@%d", t.width, t.height, t.samples)
}

// resolve downsamples the supersampled color buffer into a new texture.
func (t *Target) resolve() {
	img := t.ctx.Image()
	if t.factor > 1 {
		img = resize.Resize(uint(t.width), uint(t.height), img, resize.Bilinear)
	}
	t.tex = NewTexture(img)
}
