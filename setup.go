package refract

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/refract/asset"
	"github.com/soypat/refract/internal/d3"
	"github.com/soypat/refract/render"
	"github.com/soypat/refract/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// Node names used by Build.
const (
	GlassNode = "glass"
	PlaneNode = "plane"
	LightNode = "light"
	MeshNode  = "mesh"
)

// Setup is a scene built from a Config together with the device and
// pipeline that render it.
type Setup struct {
	Config   Config
	Scene    *scene.Scene
	Camera   *scene.Camera
	Controls *scene.OrbitControls
	Light    *scene.DirectionalLight
	// Glass is nil if the glass shaders failed to load.
	Glass    *scene.Node
	Material *RefractionMaterial
	Device   *render.Device
	Pipeline *Pipeline
	// Mesh resolves when the mesh import finishes. Nil without a mesh path.
	Mesh *asset.Handle[*scene.Node]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build assembles the scene described by cfg. Shaders are fetched with f,
// or from the embedded Shaders when f is nil, and must load before the
// pipeline is created. The mesh import runs in the background and its
// result is inserted into the scene between frames.
//
// If the shaders cannot be loaded Build still returns a usable Setup,
// rendering the scene without the glass node, together with the
// *asset.ResourceLoadError. Other errors return a nil Setup.
func Build(ctx context.Context, cfg Config, f asset.Fetcher) (*Setup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f == nil {
		f = asset.FSFetcher{FS: Shaders}
	}
	vp := Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height, PixelRatio: cfg.Viewport.PixelRatio}
	w, h := vp.Pixels(cfg.Viewport.MaxPixelRatio)
	dev, err := render.NewDevice(render.DeviceConfig{
		Width:   w,
		Height:  h,
		Shadows: cfg.Scene.Shadows,
		Ambient: cfg.Scene.Ambient,
	})
	if err != nil {
		return nil, err
	}

	s := &Setup{Config: cfg, Device: dev}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.buildScene()

	var loadErr error
	src, err := asset.LoadShaders(s.ctx, f, cfg.Shaders.Vertex, cfg.Shaders.Fragment).Wait(s.ctx)
	if err == nil {
		s.Material, err = NewRefractionMaterial(src, ms3.Vec{
			X: float32(cfg.Refraction.IOR[0]),
			Y: float32(cfg.Refraction.IOR[1]),
			Z: float32(cfg.Refraction.IOR[2]),
		})
	}
	if err != nil {
		Logger().Error("glass shaders unavailable, rendering without glass", slog.String("err", err.Error()))
		loadErr = err
	} else {
		s.Material.Strength = float32(cfg.Refraction.Strength)
		s.Glass = scene.NewMesh(GlassNode, scene.NewSphere(cfg.Refraction.Radius, cfg.Refraction.Segments, cfg.Refraction.Segments), s.Material)
		s.Glass.Transform.Position = d3.FromArray(cfg.Refraction.Position)
		s.Glass.CastShadow = true
		s.Scene.Add(s.Glass)
	}

	if cfg.Mesh.Path != "" {
		s.Mesh = asset.ImportMesh(s.ctx, cfg.Mesh.Path, s.importOptions())
		s.Mesh.Then(s.insertMesh)
	}

	s.Pipeline, err = New(dev, s.Scene, s.Camera, s.Glass, PipelineConfig{
		Viewport:      vp,
		Samples:       cfg.Viewport.Samples,
		MaxPixelRatio: cfg.Viewport.MaxPixelRatio,
	})
	if err != nil {
		s.cancel()
		return nil, errors.Join(loadErr, err)
	}
	return s, loadErr
}

func (s *Setup) buildScene() {
	cfg := s.Config
	s.Scene = scene.New()
	s.Scene.Background = color(cfg.Scene.Background)

	cc := cfg.Camera
	s.Camera = scene.NewCamera(cc.FOV, float64(cfg.Viewport.Width)/float64(cfg.Viewport.Height), cc.Near, cc.Far)
	s.Camera.Position = d3.FromArray(cc.Position)
	s.Controls = scene.NewOrbitControls(s.Camera)
	s.Controls.Target = d3.FromArray(cc.Target)
	s.Controls.Update()

	lc := cfg.Light
	s.Light = scene.NewDirectionalLight(color(lc.Color), lc.Intensity)
	s.Light.Position = d3.FromArray(lc.Position)
	s.Light.Target = d3.FromArray(lc.Target)
	s.Light.CastShadow = lc.CastShadow
	s.Light.Shadow = scene.LightShadow{
		MapSize: lc.Shadow.MapSize,
		Near:    lc.Shadow.Near,
		Far:     lc.Shadow.Far,
		Left:    lc.Shadow.Left,
		Right:   lc.Shadow.Right,
		Top:     lc.Shadow.Top,
		Bottom:  lc.Shadow.Bottom,
		Bias:    lc.Shadow.Bias,
	}
	s.Scene.Add(scene.NewLight(LightNode, s.Light))

	if cfg.Scene.PlaneSize > 0 {
		plane := scene.NewMesh(PlaneNode, scene.NewPlane(cfg.Scene.PlaneSize, cfg.Scene.PlaneSize),
			scene.NewStandardMaterial(color(cfg.Scene.PlaneColor)))
		plane.Transform.Rotation = r3.Vec{X: -math.Pi / 2}
		plane.Transform.Position = r3.Vec{Y: cfg.Scene.PlaneY}
		plane.ReceiveShadow = true
		s.Scene.Add(plane)
	}
}

func (s *Setup) importOptions() asset.ImportOptions {
	m := s.Config.Mesh
	return asset.ImportOptions{
		Name:          MeshNode,
		Position:      d3.FromArray(m.Position),
		Scale:         d3.FromArray(m.Scale),
		Fallback:      color(m.Fallback),
		CastShadow:    true,
		ReceiveShadow: true,
		WeldTolerance: m.Weld,
		SmoothAngle:   m.SmoothAngle * math.Pi / 180,
	}
}

// insertMesh publishes an imported mesh. It does nothing once the setup is
// closed.
func (s *Setup) insertMesh(n *scene.Node, err error) {
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		Logger().Warn("mesh import failed, continuing without it", slog.String("err", err.Error()))
		return
	}
	s.Scene.Replace(n)
}

// WatchMesh reimports the mesh every time its file changes until ctx is done
// or the setup is closed. It returns immediately; the watcher runs in the
// background.
func (s *Setup) WatchMesh(ctx context.Context) error {
	if s.Config.Mesh.Path == "" {
		return errors.New("refract: no mesh path configured")
	}
	w, err := asset.NewWatcher(s.Config.Mesh.Path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()
		err := w.Run(ctx, func(path string) {
			s.insertMesh(asset.DecodeMesh(path, s.importOptions()))
		})
		if err != nil {
			Logger().Warn("mesh watcher stopped", slog.String("err", err.Error()))
		}
	}()
	return nil
}

// Close cancels pending loads and watchers, then closes the pipeline.
// Continuations of loads that finish later have no effect.
func (s *Setup) Close() error {
	s.cancel()
	s.wg.Wait()
	if s.Pipeline != nil {
		return s.Pipeline.Close()
	}
	return nil
}
