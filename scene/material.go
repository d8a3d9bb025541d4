package scene

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/internal/d3"
)

// Material produces the shader used to draw a mesh node.
type Material interface {
	// Shader returns a shader for one draw call. The returned shader is
	// invoked concurrently by the rasterizer and must not mutate state.
	Shader(env *Environment) fauxgl.Shader
}

// ShadowSampler reports how lit a world space point is, from 0 (fully
// shadowed) to 1.
type ShadowSampler interface {
	Visibility(world fauxgl.Vector) float64
}

// Environment is the per draw state a renderer hands to a Material.
type Environment struct {
	// Model maps object space to world space.
	Model fauxgl.Matrix
	// Normal maps object space normals to world space.
	Normal fauxgl.Matrix
	// View maps world space to camera space.
	View fauxgl.Matrix
	// ViewProjection maps world space to clip space.
	ViewProjection fauxgl.Matrix
	Eye            fauxgl.Vector
	// Viewport is the logical size in pixels of the target being drawn.
	Viewport [2]int

	Light   *DirectionalLight
	Shadow  ShadowSampler
	Ambient float64
	// Receive is set when the node receives shadows.
	Receive bool
}

// FragCoord returns the window coordinates in pixels, origin at the top
// left, of a world space point.
func (env *Environment) FragCoord(world fauxgl.Vector) (x, y float64) {
	clip := env.ViewProjection.MulPositionW(world)
	if clip.W == 0 {
		return 0, 0
	}
	x = (clip.X/clip.W*0.5 + 0.5) * float64(env.Viewport[0])
	y = (0.5 - clip.Y/clip.W*0.5) * float64(env.Viewport[1])
	return x, y
}

// WorldVertex transforms v into world space and sets its clip space output.
// Material shaders share it as their vertex stage.
func (env *Environment) WorldVertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Position = env.Model.MulPosition(v.Position)
	v.Normal = env.Normal.MulDirection(v.Normal).Normalize()
	v.Output = env.ViewProjection.MulPositionW(v.Position)
	return v
}

// StandardMaterial is an opaque Lambert + Blinn-Phong surface.
type StandardMaterial struct {
	Color     fauxgl.Color
	Specular  float64
	Shininess float64
}

// NewStandardMaterial returns a mostly diffuse material of color c.
func NewStandardMaterial(c fauxgl.Color) *StandardMaterial {
	return &StandardMaterial{Color: c, Specular: 0.15, Shininess: 32}
}

// Valid reports whether the material color is finite and in range.
func (m *StandardMaterial) Valid() bool {
	for _, c := range [4]float64{m.Color.R, m.Color.G, m.Color.B, m.Color.A} {
		if math.IsNaN(c) || c < 0 || c > 1 {
			return false
		}
	}
	return true
}

func (m *StandardMaterial) Shader(env *Environment) fauxgl.Shader {
	return &standardShader{env: env, m: *m}
}

type standardShader struct {
	env *Environment
	m   StandardMaterial
}

func (s *standardShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	return s.env.WorldVertex(v)
}

func (s *standardShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	env := s.env
	base := s.m.Color
	light := env.Ambient
	var spec float64
	if l := env.Light; l != nil {
		n := v.Normal.Normalize()
		ld := l.Direction()
		diffuse := n.Dot(ld)
		if diffuse > 0 {
			vis := 1.0
			if env.Receive && env.Shadow != nil {
				vis = env.Shadow.Visibility(v.Position)
			}
			light += diffuse * l.Intensity * vis
			if s.m.Specular > 0 {
				h := ld.Add(env.Eye.Sub(v.Position).Normalize()).Normalize()
				spec = s.m.Specular * math.Pow(math.Max(n.Dot(h), 0), s.m.Shininess) * l.Intensity * vis
			}
		}
		return fauxgl.Color{
			R: clamp01(base.R*light*l.Color.R + spec*l.Color.R),
			G: clamp01(base.G*light*l.Color.G + spec*l.Color.G),
			B: clamp01(base.B*light*l.Color.B + spec*l.Color.B),
			A: 1,
		}
	}
	return fauxgl.Color{R: clamp01(base.R * light), G: clamp01(base.G * light), B: clamp01(base.B * light), A: 1}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// NewEnvironment fills the matrices of an Environment for a node with world
// matrix model seen by cam on a viewport of the given size.
func NewEnvironment(model fauxgl.Matrix, cam *Camera, width, height int) Environment {
	return Environment{
		Model:          model,
		Normal:         d3.NormalMatrix(model),
		View:           cam.View(),
		ViewProjection: cam.Matrix(),
		Eye:            cam.Eye(),
		Viewport:       [2]int{width, height},
	}
}
