package refract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/glgl/math/ms2"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/refract/asset"
	"github.com/soypat/refract/render"
	"github.com/soypat/refract/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// renderCall is what the device observed at one Render submission.
type renderCall struct {
	target       *render.Target
	glassVisible bool
	texture      *render.Texture
	resolution   ms2.Vec
	capture      *render.Target
	captureTex   *render.Texture
}

type recordingDevice struct {
	*render.Device
	glass    *scene.Node
	material *RefractionMaterial
	pipeline *Pipeline

	current *render.Target
	calls   []renderCall
	allocs  int
	refuse  func(w, h, samples int) bool
	// refuseErr replaces the DeviceResourceError returned by refuse.
	refuseErr  error
	failRender error
}

func (d *recordingDevice) NewTarget(w, h, samples int) (*render.Target, error) {
	if d.refuse != nil && d.refuse(w, h, samples) {
		if d.refuseErr != nil {
			return nil, d.refuseErr
		}
		return nil, &render.DeviceResourceError{Width: w, Height: h, Samples: samples, Reason: "refused by test"}
	}
	t, err := d.Device.NewTarget(w, h, samples)
	if err == nil {
		d.allocs++
	}
	return t, err
}

func (d *recordingDevice) SetTarget(t *render.Target) {
	d.current = t
	d.Device.SetTarget(t)
}

func (d *recordingDevice) Render(sc *scene.Scene, cam *scene.Camera) error {
	call := renderCall{target: d.current}
	if d.glass != nil {
		call.glassVisible = d.glass.Visible()
	}
	if d.material != nil {
		u := d.material.Uniforms()
		call.texture, call.resolution = u.Texture, u.Resolution
	}
	if d.pipeline != nil {
		call.capture = d.pipeline.Capture()
		if call.capture != nil {
			call.captureTex = call.capture.Texture()
		}
	}
	d.calls = append(d.calls, call)
	if d.current != nil && d.failRender != nil {
		return d.failRender
	}
	return d.Device.Render(sc, cam)
}

var testSource = asset.ShaderSource{
	Vertex:   "void main() {}",
	Fragment: "uniform sampler2D uTexture; uniform vec2 winResolution; uniform vec3 uIor; void main() {}",
}

type fixture struct {
	dev   *recordingDevice
	scene *scene.Scene
	cam   *scene.Camera
	glass *scene.Node
	mat   *RefractionMaterial
}

func newFixture(t *testing.T, ior ms3.Vec) *fixture {
	t.Helper()
	mat, err := NewRefractionMaterial(testSource, ior)
	if err != nil {
		t.Fatal(err)
	}
	sc := scene.New()
	sc.Background = fauxgl.HexColor("#e6e2e2")
	glass := scene.NewMesh(GlassNode, scene.NewSphere(1, 12, 12), mat)
	sc.Add(glass)
	cam := scene.NewCamera(75, 1, 0.1, 1000)
	cam.Position = r3.Vec{Y: 0.5, Z: 3}
	cam.LookAt(r3.Vec{})
	dev, err := render.NewDevice(render.DeviceConfig{Width: 1, Height: 1})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		dev:   &recordingDevice{Device: dev, glass: glass, material: mat},
		scene: sc,
		cam:   cam,
		glass: glass,
		mat:   mat,
	}
}

func (f *fixture) pipeline(t *testing.T, cfg PipelineConfig) *Pipeline {
	t.Helper()
	p, err := New(f.dev, f.scene, f.cam, f.glass, cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.dev.pipeline = p
	return p
}

func (f *fixture) frame(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.Frame(); err != nil {
		t.Fatal(err)
	}
}

func captureSize(t *testing.T, p *Pipeline) [2]int {
	t.Helper()
	c := p.Capture()
	if c == nil {
		t.Fatal("no capture target")
	}
	w, h := c.Size()
	return [2]int{w, h}
}

var defaultIOR = ms3.Vec{X: 1.15, Y: 1.18, Z: 1.22}

func TestFrameOrder(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 40, Height: 30, PixelRatio: 1}})
	const frames = 3
	for i := 0; i < frames; i++ {
		f.frame(t, p)
		if !f.glass.Visible() {
			t.Error("glass hidden between frames")
		}
		if f.dev.current != nil {
			t.Error("surface not restored")
		}
	}
	if len(f.dev.calls) != 2*frames {
		t.Fatalf("got %d render calls, want %d", len(f.dev.calls), 2*frames)
	}
	for i := 0; i < frames; i++ {
		capture, composite := f.dev.calls[2*i], f.dev.calls[2*i+1]
		if capture.target != p.Capture() {
			t.Errorf("frame %d: capture pass not on the capture target", i)
		}
		if capture.glassVisible {
			t.Errorf("frame %d: glass visible during capture", i)
		}
		if composite.target != nil {
			t.Errorf("frame %d: composite not on surface", i)
		}
		if !composite.glassVisible {
			t.Errorf("frame %d: glass hidden during composite", i)
		}
		if composite.texture == nil || composite.texture != composite.captureTex {
			t.Errorf("frame %d: composite must sample this frame's capture", i)
		}
	}
	if got := p.Stats(); got != (Stats{Rendered: frames}) {
		t.Errorf("stats %+v", got)
	}
}

func TestNoRefractiveNode(t *testing.T) {
	f := newFixture(t, defaultIOR)
	f.scene.Remove(f.glass)
	p, err := New(f.dev, f.scene, f.cam, nil, PipelineConfig{Viewport: Viewport{Width: 20, Height: 20}})
	if err != nil {
		t.Fatal(err)
	}
	f.frame(t, p)
	if len(f.dev.calls) != 1 || f.dev.calls[0].target != nil {
		t.Errorf("want a single surface render, got %+v", f.dev.calls)
	}
}

func TestNewRejectsForeignMaterial(t *testing.T) {
	f := newFixture(t, defaultIOR)
	f.glass.Material = scene.NewStandardMaterial(fauxgl.White)
	_, err := New(f.dev, f.scene, f.cam, f.glass, PipelineConfig{Viewport: Viewport{Width: 8, Height: 8}})
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("want ConfigurationError, got %v", err)
	}
}

func TestResolutionMatchesCapture(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 32, Height: 24, PixelRatio: 1}, Samples: 1})
	for _, vp := range []Viewport{
		{Width: 32, Height: 24, PixelRatio: 1},
		{Width: 20, Height: 30, PixelRatio: 2},
		{Width: 17, Height: 9, PixelRatio: 1.5},
		{Width: 10, Height: 10, PixelRatio: 3},
	} {
		p.RequestResize(vp)
		f.frame(t, p)
		composite := f.dev.calls[len(f.dev.calls)-1]
		w, h := composite.capture.Size()
		if want := (ms2.Vec{X: float32(w), Y: float32(h)}); composite.resolution != want {
			t.Errorf("viewport %+v: resolution %v, want %v", vp, composite.resolution, want)
		}
		sw, sh := p.dev.Surface().Size()
		if sw != w || sh != h {
			t.Errorf("viewport %+v: surface %dx%d and capture %dx%d differ", vp, sw, sh, w, h)
		}
	}
	if got := captureSize(t, p); got != [2]int{20, 20} {
		t.Errorf("pixel ratio 3 must clamp to 2: got %v", got)
	}
}

func TestResizeEndToEnd(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 800, Height: 600, PixelRatio: 1}})
	if n := f.dev.LiveTargets(); n != 1 {
		t.Errorf("live targets %d, want 1", n)
	}
	first := p.Capture()
	if got := captureSize(t, p); got != [2]int{800, 600} {
		t.Errorf("capture size %v", got)
	}
	if first.Samples() != 4 {
		t.Errorf("capture samples %d, want 4", first.Samples())
	}

	f.frame(t, p)
	oldTex := f.mat.Uniforms().Texture
	if oldTex == nil {
		t.Fatal("no texture bound after frame")
	}

	p.RequestResize(Viewport{Width: 1024, Height: 768, PixelRatio: 1})
	p.applyPending()
	if !first.Released() {
		t.Error("previous capture target not released")
	}
	if n := f.dev.LiveTargets(); n != 1 {
		t.Errorf("live targets %d after resize, want 1", n)
	}
	if got := captureSize(t, p); got != [2]int{1024, 768} {
		t.Errorf("capture size %v after resize", got)
	}
	if s := p.Capture().Samples(); s != 4 {
		t.Errorf("resize must keep the sample count, got %d", s)
	}
	u := f.mat.Uniforms()
	if u.Texture != nil {
		t.Error("old capture still bound after swap")
	}
	if u.Resolution != (ms2.Vec{X: 1024, Y: 768}) {
		t.Errorf("resolution %v", u.Resolution)
	}

	f.frame(t, p)
	tex := f.mat.Uniforms().Texture
	if tex == nil || tex == oldTex {
		t.Fatal("new capture not bound")
	}
	if tw, th := tex.Size(); tw != 1024 || th != 768 {
		t.Errorf("texture size %dx%d", tw, th)
	}
}

func TestZeroViewport(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 16, Height: 16}})
	err := p.Resize(Viewport{Width: 0, Height: 600})
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
	if got := captureSize(t, p); got != [2]int{1, 1} {
		t.Errorf("empty viewport must clamp to 1x1, got %v", got)
	}
	if n := f.dev.LiveTargets(); n != 1 {
		t.Errorf("live targets %d", n)
	}

	calls := len(f.dev.calls)
	f.frame(t, p)
	if len(f.dev.calls) != calls {
		t.Error("frame with empty viewport must not render")
	}
	if d := p.Stats().Dropped; d != 1 {
		t.Errorf("dropped %d, want 1", d)
	}
	if !f.glass.Visible() {
		t.Error("glass left hidden")
	}

	if err := p.Resize(Viewport{Width: 16, Height: 12}); err != nil {
		t.Fatal(err)
	}
	f.frame(t, p)
	if len(f.dev.calls) != calls+2 {
		t.Errorf("got %d render calls, want %d", len(f.dev.calls), calls+2)
	}
}

func TestDegradeLadder(t *testing.T) {
	f := newFixture(t, defaultIOR)
	f.dev.refuse = func(w, h, samples int) bool { return samples > 1 }
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 16, Height: 16}, Samples: 4})
	if s := p.Capture().Samples(); s != 1 {
		t.Errorf("samples %d, want 1", s)
	}
	if got := captureSize(t, p); got[0] != 16 {
		t.Errorf("capture size %v", got)
	}
	f.frame(t, p)
	if r := p.Stats().Rendered; r != 1 {
		t.Errorf("rendered %d", r)
	}

	// Only the placeholder fits.
	f.dev.refuse = func(w, h, samples int) bool { return w > 1 || h > 1 }
	if err := p.Resize(Viewport{Width: 32, Height: 32}); err != nil {
		t.Fatal(err)
	}
	if got := captureSize(t, p); got != [2]int{1, 1} {
		t.Errorf("capture size %v, want placeholder", got)
	}
	f.frame(t, p)
	if d := p.Stats().Dropped; d != 1 {
		t.Errorf("dropped %d, want 1", d)
	}

	// Nothing fits: no capture target, frames dropped, loop survives.
	f.dev.refuse = func(int, int, int) bool { return true }
	err := p.Resize(Viewport{Width: 8, Height: 8})
	var rerr *render.DeviceResourceError
	if !errors.As(err, &rerr) {
		t.Fatalf("want DeviceResourceError, got %v", err)
	}
	if p.Capture() != nil {
		t.Error("capture target kept after failed resize")
	}
	if n := f.dev.LiveTargets(); n != 0 {
		t.Errorf("live targets %d", n)
	}
	if p.Frame() == nil {
		t.Error("frame without capture target succeeded")
	}
	if !f.glass.Visible() {
		t.Error("glass left hidden")
	}

	f.dev.refuse = nil
	if err := p.Resize(Viewport{Width: 8, Height: 8}); err != nil {
		t.Fatal(err)
	}
	f.frame(t, p)
	if s := p.Capture().Samples(); s != 4 {
		t.Errorf("samples %d after recovery, want 4", s)
	}
}

func TestDegradeLadderAnyError(t *testing.T) {
	f := newFixture(t, defaultIOR)
	lost := errors.New("context lost")
	f.dev.refuseErr = lost
	f.dev.refuse = func(w, h, samples int) bool { return samples > 1 }
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 16, Height: 16}, Samples: 4})
	if s := p.Capture().Samples(); s != 1 {
		t.Errorf("samples %d, want 1", s)
	}
	if got := captureSize(t, p); got != [2]int{16, 16} {
		t.Errorf("capture size %v", got)
	}

	f.dev.refuse = func(w, h, samples int) bool { return w > 1 || h > 1 }
	if err := p.Resize(Viewport{Width: 32, Height: 32}); err != nil {
		t.Fatal(err)
	}
	if got := captureSize(t, p); got != [2]int{1, 1} {
		t.Errorf("capture size %v, want placeholder", got)
	}

	f.dev.refuse = func(int, int, int) bool { return true }
	if err := p.Resize(Viewport{Width: 8, Height: 8}); !errors.Is(err, lost) {
		t.Errorf("want %v in error, got %v", lost, err)
	}
	if p.Capture() != nil {
		t.Error("capture target kept after failed resize")
	}
}

func TestCaptureFailureAbortsFrame(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 16, Height: 16}})
	boom := errors.New("device lost")
	f.dev.failRender = boom
	if err := p.Frame(); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
	if len(f.dev.calls) != 1 {
		t.Error("composite must be skipped")
	}
	if !f.glass.Visible() {
		t.Error("visibility not restored")
	}
	if f.dev.current != nil {
		t.Error("target not restored")
	}
	if got := p.Stats(); got != (Stats{Dropped: 1}) {
		t.Errorf("stats %+v", got)
	}

	f.dev.failRender = nil
	f.frame(t, p)
	if got := p.Stats(); got != (Stats{Rendered: 1, Dropped: 1}) {
		t.Errorf("stats %+v", got)
	}
}

func TestRequestResizeCoalesced(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 8, Height: 8}, Samples: 1})
	allocs := f.dev.allocs
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.RequestResize(Viewport{Width: 8 + i, Height: 8})
		}(i)
	}
	wg.Wait()
	p.RequestResize(Viewport{Width: 30, Height: 10})
	f.frame(t, p)
	if f.dev.allocs != allocs+1 {
		t.Errorf("pending resizes must coalesce: %d allocations", f.dev.allocs-allocs)
	}
	if got := captureSize(t, p); got != [2]int{30, 10} {
		t.Errorf("capture size %v", got)
	}
	if a := f.cam.Aspect; a < 3-1e-12 || a > 3+1e-12 {
		t.Errorf("camera aspect %v, want 3", a)
	}
}

func TestRunStopClose(t *testing.T) {
	f := newFixture(t, defaultIOR)
	var presented int
	p := f.pipeline(t, PipelineConfig{
		Viewport: Viewport{Width: 8, Height: 8},
		OnFrame: func(surface *render.Target) error {
			presented++
			if surface.Image() == nil {
				t.Error("nil surface image")
			}
			return nil
		},
	})
	if err := p.Run(context.Background(), &FrameLimit{Frames: 5}); err != nil {
		t.Fatal(err)
	}
	if presented != 5 || p.Stats().Rendered != 5 {
		t.Errorf("presented %d rendered %d, want 5", presented, p.Stats().Rendered)
	}

	ticker := NewTicker(1000)
	defer ticker.Stop()
	done := make(chan error)
	go func() { done <- p.Run(context.Background(), ticker) }()
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Error(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not end Run")
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if n := f.dev.LiveTargets(); n != 0 {
		t.Errorf("live targets %d after Close", n)
	}
	if err := p.Frame(); !errors.Is(err, ErrClosed) {
		t.Errorf("Frame after Close: %v", err)
	}
	if err := p.Run(context.Background(), &FrameLimit{Frames: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close: %v", err)
	}
}

func TestRunContextCancel(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 8, Height: 8}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ticker := NewTicker(500)
	defer ticker.Stop()
	if err := p.Run(ctx, ticker); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want deadline exceeded, got %v", err)
	}
}

func TestDeferredInsertBetweenFrames(t *testing.T) {
	f := newFixture(t, defaultIOR)
	p := f.pipeline(t, PipelineConfig{Viewport: Viewport{Width: 8, Height: 8}})
	f.frame(t, p)
	f.scene.Insert(scene.NewMesh("late", scene.NewPlane(1, 1), scene.NewStandardMaterial(fauxgl.White)))
	if f.scene.Find("late") != nil {
		t.Error("insert applied before the next frame")
	}
	f.frame(t, p)
	if f.scene.Find("late") == nil {
		t.Error("insert not applied by the frame")
	}
}
