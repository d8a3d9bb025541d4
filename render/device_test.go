package render

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/scene"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot/cmpimg"
)

const imgDelta = 0.01

func TestNewTargetLimits(t *testing.T) {
	d, err := NewDevice(DeviceConfig{Width: 8, Height: 8, MaxSamples: 4, MaxTargetSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		w, h, samples int
	}{
		{0, 8, 1},
		{8, -1, 1},
		{8, 8, 2},
		{8, 8, 9},
		{40, 8, 4},
		{65, 8, 1},
	} {
		_, err := d.NewTarget(test.w, test.h, test.samples)
		var rerr *DeviceResourceError
		if !errors.As(err, &rerr) {
			t.Errorf("%v: expected DeviceResourceError, got %v", test, err)
			continue
		}
		if rerr.Width != test.w || rerr.Height != test.h || rerr.Samples != test.samples {
			t.Errorf("%v: error reports %v", test, rerr)
		}
	}
	tg, err := d.NewTarget(32, 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := tg.Size(); w != 32 || h != 16 || tg.Samples() != 4 {
		t.Errorf("got target %v", tg)
	}
	if tg, err = d.NewTarget(8, 8, 0); err != nil || tg.Samples() != 1 {
		t.Errorf("zero samples: %v %v", tg, err)
	}
}

func TestLiveTargets(t *testing.T) {
	d, err := NewDevice(DeviceConfig{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := d.NewTarget(4, 4, 1)
	b, _ := d.NewTarget(4, 4, 4)
	if d.LiveTargets() != 2 {
		t.Fatalf("live targets %d, want 2", d.LiveTargets())
	}
	a.Release()
	a.Release()
	if d.LiveTargets() != 1 || !a.Released() || b.Released() {
		t.Fatalf("live targets %d after release", d.LiveTargets())
	}
	d.SetTarget(a)
	if err := d.Render(scene.New(), scene.NewCamera(60, 1, 0.1, 10)); !errors.Is(err, errReleased) {
		t.Errorf("render into released target: %v", err)
	}
}

func TestRenderBackground(t *testing.T) {
	bg := fauxgl.HexColor("#e6e2e2")
	d, err := NewDevice(DeviceConfig{Width: 16, Height: 8, Samples: 4})
	if err != nil {
		t.Fatal(err)
	}
	sc := scene.New()
	sc.Background = bg
	tg, _ := d.NewTarget(16, 8, 4)
	d.SetTarget(tg)
	if err := d.Render(sc, scene.NewCamera(60, 2, 0.1, 10)); err != nil {
		t.Fatal(err)
	}
	if d.Surface().Texture() != nil {
		t.Error("surface rendered while offscreen target selected")
	}
	want := bg.NRGBA()
	img := tg.Image()
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			if got := img.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func testScene() (*scene.Scene, *scene.Camera, *scene.Node) {
	sc := scene.New()
	sc.Background = fauxgl.HexColor("#e6e2e2")
	light := scene.NewDirectionalLight(fauxgl.White, 1)
	light.Position = r3.Vec{X: -2, Y: 10}
	light.CastShadow = true
	sc.Add(scene.NewLight("light", light))

	plane := scene.NewMesh("plane", scene.NewPlane(10, 10), scene.NewStandardMaterial(fauxgl.White))
	plane.Transform.Rotation.X = -1.5707963267948966
	plane.Transform.Position.Y = -1
	plane.ReceiveShadow = true

	ball := scene.NewMesh("ball", scene.NewSphere(1, 16, 16), scene.NewStandardMaterial(fauxgl.HexColor("#468966")))
	ball.CastShadow = true
	sc.Add(plane, ball)

	cam := scene.NewCamera(75, 4.0/3, 0.1, 1000)
	cam.Position = r3.Vec{Y: 0.5, Z: 3}
	cam.LookAt(r3.Vec{})
	return sc, cam, ball
}

func renderPNG(t *testing.T, d *Device, sc *scene.Scene, cam *scene.Camera) []byte {
	t.Helper()
	if err := d.Render(sc, cam); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, d.Surface().Image()); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderDeterministic(t *testing.T) {
	sc, cam, _ := testScene()
	d, err := NewDevice(DeviceConfig{Width: 64, Height: 48, Samples: 4, Shadows: true, Ambient: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	a := renderPNG(t, d, sc, cam)
	b := renderPNG(t, d, sc, cam)
	equal, err := cmpimg.EqualApprox("png", a, b, imgDelta)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("repeated renders differ")
	}
}

func TestRenderHiddenNode(t *testing.T) {
	sc, cam, ball := testScene()
	d, err := NewDevice(DeviceConfig{Width: 64, Height: 48})
	if err != nil {
		t.Fatal(err)
	}
	with := renderPNG(t, d, sc, cam)
	ball.SetVisible(false)
	without := renderPNG(t, d, sc, cam)
	sc.Remove(ball)
	removed := renderPNG(t, d, sc, cam)

	equal, err := cmpimg.EqualApprox("png", without, removed, imgDelta)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("hidden node still drawn")
	}
	if bytes.Equal(with, without) {
		t.Error("visible node not drawn")
	}
}

func TestResizeSurface(t *testing.T) {
	d, err := NewDevice(DeviceConfig{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	old := d.Surface()
	if err := d.Resize(0, 8); err == nil {
		t.Fatal("expected error resizing to zero width")
	}
	if d.Surface() != old {
		t.Fatal("failed resize replaced surface")
	}
	if err := d.Resize(20, 10); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Surface().Size(); w != 20 || h != 10 || !old.Released() {
		t.Errorf("surface %dx%d, old released %v", w, h, old.Released())
	}
	if d.LiveTargets() != 0 {
		t.Error("surface counted as offscreen target")
	}
}

func TestShadowVisibility(t *testing.T) {
	sc, _, ball := testScene()
	light := sc.DirectionalLight()
	light.Position = r3.Vec{Y: 10}
	light.Shadow.MapSize = 256
	d, err := NewDevice(DeviceConfig{Width: 4, Height: 4, Shadows: true})
	if err != nil {
		t.Fatal(err)
	}
	sm := d.renderShadow(sc, light)
	if v := sm.Visibility(fauxgl.Vector{Y: -1}); v != 0 {
		t.Errorf("point below the ball visibility %v, want 0", v)
	}
	if v := sm.Visibility(fauxgl.Vector{X: 3, Y: -1}); v != 1 {
		t.Errorf("open floor visibility %v, want 1", v)
	}
	if v := sm.Visibility(fauxgl.Vector{Y: 1}); v != 1 {
		t.Errorf("top of the ball visibility %v, want 1", v)
	}
	ball.SetVisible(false)
	sm = d.renderShadow(sc, light)
	if v := sm.Visibility(fauxgl.Vector{Y: -1}); v != 1 {
		t.Errorf("hidden ball casts shadow: %v", v)
	}
}

func TestShadowMapDepthOnly(t *testing.T) {
	sc, _, _ := testScene()
	light := sc.DirectionalLight()
	light.Shadow.MapSize = 64
	d, err := NewDevice(DeviceConfig{Width: 4, Height: 4, Shadows: true})
	if err != nil {
		t.Fatal(err)
	}
	sm := d.renderShadow(sc, light)
	var covered int
	for _, z := range sm.ctx.DepthBuffer {
		if z == math.MaxFloat64 {
			continue
		}
		if z < 0 || z > 1 {
			t.Fatalf("depth %v outside [0,1]", z)
		}
		covered++
	}
	// Ball of radius 1 in a 10x10 light frustum covers about 3% of the map.
	if total := len(sm.ctx.DepthBuffer); covered < total/50 || covered > total/10 {
		t.Errorf("ball covers %d of %d texels", covered, total)
	}
	for i, px := range sm.ctx.ColorBuffer.Pix {
		if px != 0 {
			t.Fatalf("color buffer written at byte %d", i)
		}
	}
	light.Shadow.MapSize = 32
	if sm = d.renderShadow(sc, light); sm.size() != 32 || len(sm.ctx.DepthBuffer) != 32*32 {
		t.Errorf("shadow map not resized: %d", sm.size())
	}
}
