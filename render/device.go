package render

import (
	"fmt"
	"log/slog"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/scene"
)

// DeviceConfig configures a software Device.
type DeviceConfig struct {
	// Width and Height size the visible surface in pixels.
	Width, Height int
	// Samples per pixel of the visible surface. Zero means one.
	Samples int
	// MaxSamples bounds the samples of any target. Zero means 16.
	MaxSamples int
	// MaxTargetSize bounds the width and height of a target's sample
	// buffer. Zero means 8192.
	MaxTargetSize int
	// Shadows enables shadow mapping for lights that cast shadows.
	Shadows bool
	// Ambient is the light every surface receives regardless of shadows.
	Ambient float64
}

// Device renders scenes into the visible surface or an offscreen target.
// A Device is owned by a single goroutine.
type Device struct {
	cfg     DeviceConfig
	surface *Target
	current *Target
	shadow  *shadowMap
	live    int
}

// NewDevice allocates a device and its visible surface.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 16
	}
	if cfg.MaxTargetSize <= 0 {
		cfg.MaxTargetSize = 8192
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 1
	}
	d := &Device{cfg: cfg}
	surface, err := d.allocate(cfg.Width, cfg.Height, cfg.Samples)
	if err != nil {
		return nil, err
	}
	d.surface = surface
	return d, nil
}

// NewTarget allocates an offscreen target. samples must be 1 or a perfect
// square not larger than the device maximum; zero means one. Failures are
// of type *DeviceResourceError.
func (d *Device) NewTarget(width, height, samples int) (*Target, error) {
	if samples <= 0 {
		samples = 1
	}
	t, err := d.allocate(width, height, samples)
	if err != nil {
		return nil, err
	}
	d.live++
	t.onRelease = func() { d.live-- }
	logger().Debug("allocated render target", slog.String("target", t.String()))
	return t, nil
}

func (d *Device) allocate(width, height, samples int) (*Target, error) {
	fail := func(reason string) error {
		return &DeviceResourceError{Width: width, Height: height, Samples: samples, Reason: reason}
	}
	if width <= 0 || height <= 0 {
		return nil, fail("non positive size")
	}
	if samples > d.cfg.MaxSamples {
		return nil, fail(fmt.Sprintf("samples exceed device maximum %d", d.cfg.MaxSamples))
	}
	factor := isqrt(samples)
	if factor*factor != samples {
		return nil, fail("samples must be a perfect square")
	}
	if width*factor > d.cfg.MaxTargetSize || height*factor > d.cfg.MaxTargetSize {
		return nil, fail(fmt.Sprintf("exceeds maximum target size %d", d.cfg.MaxTargetSize))
	}
	return newTarget(width, height, samples, factor), nil
}

// LiveTargets returns the number of offscreen targets not yet released.
func (d *Device) LiveTargets() int { return d.live }

// SetTarget selects where Render draws. A nil target selects the surface.
func (d *Device) SetTarget(t *Target) { d.current = t }

// Surface returns the visible surface.
func (d *Device) Surface() *Target { return d.surface }

// Resize reallocates the visible surface. On error the previous surface is
// kept.
func (d *Device) Resize(width, height int) error {
	if w, h := d.surface.Size(); w == width && h == height {
		return nil
	}
	s, err := d.allocate(width, height, d.cfg.Samples)
	if err != nil {
		return err
	}
	d.surface.Release()
	d.surface = s
	return nil
}

// Render draws every visible mesh node of sc as seen by cam into the
// selected target and resolves it.
func (d *Device) Render(sc *scene.Scene, cam *scene.Camera) error {
	t := d.current
	if t == nil {
		t = d.surface
	}
	if t.Released() {
		return fmt.Errorf("render into %v: %w", t, errReleased)
	}
	ctx := t.ctx
	ctx.ClearColorBufferWith(sc.Background)
	ctx.ClearDepthBuffer()

	light := sc.DirectionalLight()
	var shadow scene.ShadowSampler
	if d.cfg.Shadows && light != nil && light.CastShadow {
		shadow = d.renderShadow(sc, light)
	}
	w, h := t.Size()
	sc.Traverse(func(n *scene.Node, world fauxgl.Matrix) bool {
		if !n.IsMesh() || n.Material == nil {
			return true
		}
		env := scene.NewEnvironment(world, cam, w, h)
		env.Light = light
		env.Shadow = shadow
		env.Ambient = d.cfg.Ambient
		env.Receive = n.ReceiveShadow
		ctx.Shader = n.Material.Shader(&env)
		ctx.DrawMesh(n.Mesh)
		return true
	})
	t.resolve()
	return nil
}

func (d *Device) renderShadow(sc *scene.Scene, light *scene.DirectionalLight) *shadowMap {
	size := light.Shadow.MapSize
	if size <= 0 {
		size = 512
	}
	if d.shadow == nil || d.shadow.size() != size {
		d.shadow = newShadowMap(size)
	}
	sm := d.shadow
	sm.reset(light.ShadowMatrix(), light.Shadow.Bias)
	sc.Traverse(func(n *scene.Node, world fauxgl.Matrix) bool {
		if n.IsMesh() && n.CastShadow {
			sm.drawMesh(n.Mesh, world)
		}
		return true
	})
	return sm
}

func isqrt(n int) int {
	r := 0
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
