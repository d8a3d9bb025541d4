package refract

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soypat/refract/render"
	"github.com/soypat/refract/scene"
)

// Device is the renderer a Pipeline drives. *render.Device implements it.
type Device interface {
	NewTarget(width, height, samples int) (*render.Target, error)
	// SetTarget selects the target of the following renders; nil selects
	// the visible surface.
	SetTarget(t *render.Target)
	Resize(width, height int) error
	Surface() *render.Target
	Render(sc *scene.Scene, cam *scene.Camera) error
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Viewport Viewport
	// Samples per pixel of the capture target. Zero means 4.
	Samples int
	// MaxPixelRatio clamps the viewport pixel ratio. Zero means
	// DefaultMaxPixelRatio.
	MaxPixelRatio float64
	// OnFrame is called by Run with the visible surface after every
	// rendered frame. An error stops Run.
	OnFrame func(surface *render.Target) error
}

// Stats counts frames since the pipeline was created.
type Stats struct {
	// Rendered frames completed both passes.
	Rendered uint64
	// Dropped frames were skipped or aborted.
	Dropped uint64
}

// Pipeline renders a scene in two passes per frame so that the refractive
// node can show the scene behind it. A Pipeline is owned by one goroutine;
// only RequestResize and Stop may be called from others.
type Pipeline struct {
	dev      Device
	scene    *scene.Scene
	camera   *scene.Camera
	node     *scene.Node
	material *RefractionMaterial
	cfg      PipelineConfig

	viewport Viewport
	capture  *render.Target
	// skip is set while the capture target is a placeholder.
	skip   bool
	closed bool
	stats  Stats

	mu       sync.Mutex
	pending  *Viewport
	stopOnce sync.Once
	stop     chan struct{}
}

// New returns a pipeline rendering sc from cam with dev. refractive is the
// glass node, whose material must be a *RefractionMaterial. It may be nil,
// in which case every frame is a single composite pass.
//
// The capture target is allocated for cfg.Viewport. Allocation failures
// degrade the target as Resize does and are logged.
func New(dev Device, sc *scene.Scene, cam *scene.Camera, refractive *scene.Node, cfg PipelineConfig) (*Pipeline, error) {
	if dev == nil || sc == nil || cam == nil {
		return nil, errors.New("refract: nil device, scene or camera")
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 4
	}
	if cfg.MaxPixelRatio <= 0 {
		cfg.MaxPixelRatio = DefaultMaxPixelRatio
	}
	p := &Pipeline{
		dev:    dev,
		scene:  sc,
		camera: cam,
		node:   refractive,
		cfg:    cfg,
		stop:   make(chan struct{}),
	}
	if refractive != nil {
		mat, ok := refractive.Material.(*RefractionMaterial)
		if !ok {
			return nil, &ConfigurationError{Field: "refractive material", Value: fmt.Sprintf("%T", refractive.Material), Reason: "must be *RefractionMaterial"}
		}
		p.material = mat
		refractive.SetVisible(true)
	}
	if err := p.Resize(cfg.Viewport); err != nil {
		Logger().Warn("initial viewport", slog.String("err", err.Error()))
	}
	return p, nil
}

// Viewport returns the viewport last applied.
func (p *Pipeline) Viewport() Viewport { return p.viewport }

// Capture returns the current capture target. It is nil only if no target
// could be allocated.
func (p *Pipeline) Capture() *render.Target { return p.capture }

// Material returns the refractive material or nil.
func (p *Pipeline) Material() *RefractionMaterial { return p.material }

// Stats returns the frame counters.
func (p *Pipeline) Stats() Stats { return p.stats }

// Resize applies a new viewport: it updates the camera aspect, the surface
// and recreates the capture target, swapping it into the material together
// with the new resolution. It must be called between frames by the owner
// goroutine.
//
// An empty viewport returns a *ConfigurationError; buffers are clamped to
// 1x1 and frames are skipped until a non-empty viewport is applied. A
// capture target that cannot be allocated degrades to fewer samples, then to
// a 1x1 placeholder that also skips frames.
func (p *Pipeline) Resize(vp Viewport) error {
	if p.closed {
		return ErrClosed
	}
	var cfgErr error
	if vp.Empty() {
		cfgErr = &ConfigurationError{Field: "viewport", Value: fmt.Sprintf("%dx%d", vp.Width, vp.Height), Reason: "zero width or height"}
	}
	w, h := vp.Pixels(p.cfg.MaxPixelRatio)
	if cfgErr != nil {
		w, h = 1, 1
	}
	p.viewport = vp
	p.camera.SetAspect(vp.Aspect())
	if err := p.dev.Resize(w, h); err != nil {
		Logger().Warn("surface resize failed", slog.Int("width", w), slog.Int("height", h), slog.String("err", err.Error()))
	}

	t, fallback, err := p.allocateCapture(w, h)
	p.swapCapture(t)
	p.skip = cfgErr != nil || fallback
	Logger().Info("viewport resized",
		slog.Int("width", vp.Width), slog.Int("height", vp.Height),
		slog.Float64("pixelRatio", vp.Ratio(p.cfg.MaxPixelRatio)),
		slog.Bool("skip", p.skip))
	return errors.Join(cfgErr, err)
}

// RequestResize records a viewport to apply before the next frame. It is
// safe to call from any goroutine; only the latest request is applied.
func (p *Pipeline) RequestResize(vp Viewport) {
	p.mu.Lock()
	p.pending = &vp
	p.mu.Unlock()
}

func (p *Pipeline) applyPending() {
	p.mu.Lock()
	vp := p.pending
	p.pending = nil
	p.mu.Unlock()
	if vp == nil {
		return
	}
	if err := p.Resize(*vp); err != nil {
		Logger().Warn("resize", slog.String("err", err.Error()))
	}
}

// Frame renders one frame. Deferred scene insertions and resize requests
// are applied first. Then, if there is a refractive node, it is hidden, the
// scene is captured offscreen, the capture is bound to the material and the
// node is shown again. Finally the scene is composited to the surface.
//
// A failed capture aborts the frame without compositing. Skipped and
// failed frames are counted as dropped.
func (p *Pipeline) Frame() error {
	if p.closed {
		return ErrClosed
	}
	p.scene.Flush()
	p.applyPending()
	if p.skip {
		p.stats.Dropped++
		return nil
	}
	if p.node != nil {
		if err := p.capturePass(); err != nil {
			p.stats.Dropped++
			return fmt.Errorf("capture pass: %w", err)
		}
	}
	if err := p.dev.Render(p.scene, p.camera); err != nil {
		p.stats.Dropped++
		return fmt.Errorf("composite pass: %w", err)
	}
	p.stats.Rendered++
	return nil
}

func (p *Pipeline) capturePass() error {
	if p.capture == nil {
		return errors.New("no capture target")
	}
	p.node.SetVisible(false)
	defer func() {
		p.node.SetVisible(true)
		p.dev.SetTarget(nil)
	}()
	p.dev.SetTarget(p.capture)
	if err := p.dev.Render(p.scene, p.camera); err != nil {
		return err
	}
	p.material.bind(p.capture.Texture())
	return nil
}

// Close releases the capture target and stops Run. Later frames return
// ErrClosed.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.Stop()
	p.swapCapture(nil)
	p.closed = true
	return nil
}
