package refract

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/pelletier/go-toml/v2"
)

// Config describes the default glass scene. Zero values are not defaults;
// start from DefaultConfig.
type Config struct {
	Viewport   ViewportConfig   `toml:"viewport"`
	Camera     CameraConfig     `toml:"camera"`
	Light      LightConfig      `toml:"light"`
	Scene      SceneConfig      `toml:"scene"`
	Refraction RefractionConfig `toml:"refraction"`
	Mesh       MeshConfig       `toml:"mesh"`
	Shaders    ShaderConfig     `toml:"shaders"`
}

type ViewportConfig struct {
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	PixelRatio    float64 `toml:"pixel_ratio"`
	MaxPixelRatio float64 `toml:"max_pixel_ratio"`
	Samples       int     `toml:"samples"`
}

type CameraConfig struct {
	FOV      float64    `toml:"fov"`
	Near     float64    `toml:"near"`
	Far      float64    `toml:"far"`
	Position [3]float64 `toml:"position"`
	Target   [3]float64 `toml:"target"`
}

type LightConfig struct {
	Color      string       `toml:"color"`
	Intensity  float64      `toml:"intensity"`
	Position   [3]float64   `toml:"position"`
	Target     [3]float64   `toml:"target"`
	CastShadow bool         `toml:"cast_shadow"`
	Shadow     ShadowConfig `toml:"shadow"`
}

type ShadowConfig struct {
	MapSize int     `toml:"map_size"`
	Near    float64 `toml:"near"`
	Far     float64 `toml:"far"`
	Left    float64 `toml:"left"`
	Right   float64 `toml:"right"`
	Top     float64 `toml:"top"`
	Bottom  float64 `toml:"bottom"`
	Bias    float64 `toml:"bias"`
}

type SceneConfig struct {
	Background string  `toml:"background"`
	Ambient    float64 `toml:"ambient"`
	Shadows    bool    `toml:"shadows"`
	PlaneSize  float64 `toml:"plane_size"`
	PlaneY     float64 `toml:"plane_y"`
	PlaneColor string  `toml:"plane_color"`
}

type RefractionConfig struct {
	// IOR per red, green and blue channel.
	IOR      [3]float64 `toml:"ior"`
	Strength float64    `toml:"strength"`
	Radius   float64    `toml:"radius"`
	Segments int        `toml:"segments"`
	Position [3]float64 `toml:"position"`
}

type MeshConfig struct {
	// Path of the mesh to import. Empty disables the import.
	Path     string     `toml:"path"`
	Position [3]float64 `toml:"position"`
	Scale    [3]float64 `toml:"scale"`
	Fallback string     `toml:"fallback"`
	// Weld is the vertex welding distance in model units.
	Weld float64 `toml:"weld"`
	// SmoothAngle is the crease angle in degrees for normal smoothing.
	// Zero keeps flat faces.
	SmoothAngle float64 `toml:"smooth_angle"`
}

type ShaderConfig struct {
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
}

// DefaultConfig returns the configuration of the stock scene: a glass
// sphere over a white floor lit from above.
func DefaultConfig() Config {
	return Config{
		Viewport: ViewportConfig{
			Width:         800,
			Height:        600,
			PixelRatio:    1,
			MaxPixelRatio: DefaultMaxPixelRatio,
			Samples:       4,
		},
		Camera: CameraConfig{
			FOV:      75,
			Near:     0.1,
			Far:      1000,
			Position: [3]float64{0, 0.5, 3},
		},
		Light: LightConfig{
			Color:      "#ffffff",
			Intensity:  1,
			Position:   [3]float64{-2, 10, 0},
			CastShadow: true,
			Shadow: ShadowConfig{
				MapSize: 2048,
				Near:    0.01,
				Far:     100,
				Left:    100,
				Right:   -100,
				Top:     100,
				Bottom:  -100,
				Bias:    -0.001,
			},
		},
		Scene: SceneConfig{
			Background: "#e6e2e2",
			Ambient:    0.25,
			Shadows:    true,
			PlaneSize:  10,
			PlaneY:     -1,
			PlaneColor: "#ffffff",
		},
		Refraction: RefractionConfig{
			IOR:      [3]float64{1.15, 1.18, 1.22},
			Strength: 1,
			Radius:   1,
			Segments: 32,
		},
		Mesh: MeshConfig{
			Scale:    [3]float64{0.015, 0.02, 0.01},
			Fallback: "#cccccc",
			Weld:     1e-5,
		},
		Shaders: ShaderConfig{
			Vertex:   "shaders/glass.vertexshader",
			Fragment: "shaders/glass.fragmentshader",
		},
	}
}

// LoadConfig decodes the TOML file at path over DefaultConfig and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate returns every invalid field as a joined list of
// *ConfigurationError.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, field string, value any, reason string) {
		if !ok {
			errs = append(errs, &ConfigurationError{Field: field, Value: value, Reason: reason})
		}
	}
	vp := c.Viewport
	check(vp.Width > 0 && vp.Height > 0, "viewport size", fmt.Sprintf("%dx%d", vp.Width, vp.Height), "must be positive")
	check(vp.PixelRatio >= 0 && finite(vp.PixelRatio), "viewport.pixel_ratio", vp.PixelRatio, "must be a non negative number")
	check(vp.MaxPixelRatio >= 0 && finite(vp.MaxPixelRatio), "viewport.max_pixel_ratio", vp.MaxPixelRatio, "must be a non negative number")
	check(vp.Samples >= 0, "viewport.samples", vp.Samples, "must not be negative")

	cam := c.Camera
	check(cam.FOV > 0 && cam.FOV < 180, "camera.fov", cam.FOV, "must be within (0, 180) degrees")
	check(cam.Near > 0 && cam.Far > cam.Near, "camera near/far", [2]float64{cam.Near, cam.Far}, "need 0 < near < far")
	check(cam.Position != cam.Target, "camera.position", cam.Position, "must differ from target")

	l := c.Light
	check(validHex(l.Color), "light.color", l.Color, "must be a #rrggbb color")
	check(l.Intensity >= 0, "light.intensity", l.Intensity, "must not be negative")
	check(l.Position != l.Target, "light.position", l.Position, "must differ from target")
	if l.CastShadow {
		s := l.Shadow
		check(s.MapSize > 0 && s.MapSize <= 8192, "light.shadow.map_size", s.MapSize, "must be within [1, 8192]")
		check(s.Near < s.Far, "light.shadow near/far", [2]float64{s.Near, s.Far}, "need near < far")
		check(s.Left != s.Right && s.Top != s.Bottom, "light.shadow frustum", [4]float64{s.Left, s.Right, s.Top, s.Bottom}, "must have area")
	}

	sc := c.Scene
	check(validHex(sc.Background), "scene.background", sc.Background, "must be a #rrggbb color")
	check(validHex(sc.PlaneColor), "scene.plane_color", sc.PlaneColor, "must be a #rrggbb color")
	check(sc.Ambient >= 0 && sc.Ambient <= 1, "scene.ambient", sc.Ambient, "must be within [0, 1]")
	check(sc.PlaneSize >= 0, "scene.plane_size", sc.PlaneSize, "must not be negative")

	r := c.Refraction
	for i, ior := range r.IOR {
		check(ior >= MinIOR && ior <= MaxIOR, fmt.Sprintf("refraction.ior[%d]", i), ior, "must be within [1, 3]")
	}
	check(r.Radius > 0, "refraction.radius", r.Radius, "must be positive")
	check(r.Segments >= 3, "refraction.segments", r.Segments, "must be at least 3")
	check(finite(r.Strength), "refraction.strength", r.Strength, "must be finite")

	m := c.Mesh
	if m.Path != "" {
		check(validHex(m.Fallback), "mesh.fallback", m.Fallback, "must be a #rrggbb color")
		check(m.Scale[0] != 0 && m.Scale[1] != 0 && m.Scale[2] != 0, "mesh.scale", m.Scale, "must not have zero components")
		check(m.Weld >= 0, "mesh.weld", m.Weld, "must not be negative")
		check(m.SmoothAngle >= 0 && m.SmoothAngle <= 180, "mesh.smooth_angle", m.SmoothAngle, "must be within [0, 180] degrees")
	}
	check(c.Shaders.Vertex != "" && c.Shaders.Fragment != "", "shaders", c.Shaders, "vertex and fragment paths required")
	return errors.Join(errs...)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func validHex(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

func color(s string) fauxgl.Color { return fauxgl.HexColor(s) }
