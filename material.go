package refract

import (
	"github.com/chewxy/math32"
	"github.com/fogleman/fauxgl"
	"github.com/soypat/glgl/math/ms2"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/refract/asset"
	"github.com/soypat/refract/render"
	"github.com/soypat/refract/scene"
)

// Uniform names the glass shaders must declare.
const (
	UniformTexture    = "uTexture"
	UniformResolution = "winResolution"
	UniformIOR        = "uIor"
)

// IOR bounds accepted by NewRefractionMaterial.
const (
	MinIOR = 1
	MaxIOR = 3
)

// Uniforms is the state the glass shader reads.
type Uniforms struct {
	// Texture is the last captured background. The material does not own it.
	Texture *render.Texture
	// Resolution is the size in pixels of the capture target.
	Resolution ms2.Vec
	// IOR holds the index of refraction of the red, green and blue channels.
	IOR ms3.Vec
}

// RefractionMaterial draws a surface that shows the captured background
// bent by refraction. Its uniforms are written by the Pipeline between
// render passes.
type RefractionMaterial struct {
	Source asset.ShaderSource
	// Strength scales the screen space offsets.
	Strength float32
	// Fallback is drawn while no background has been captured.
	Fallback fauxgl.Color

	u Uniforms
}

// NewRefractionMaterial checks that src declares the glass uniforms and that
// every IOR component lies in [MinIOR, MaxIOR].
func NewRefractionMaterial(src asset.ShaderSource, ior ms3.Vec) (*RefractionMaterial, error) {
	if err := src.Require(UniformTexture, UniformResolution, UniformIOR); err != nil {
		return nil, err
	}
	for _, c := range [3]float32{ior.X, ior.Y, ior.Z} {
		if !(c >= MinIOR && c <= MaxIOR) {
			return nil, &ConfigurationError{Field: "IOR", Value: ior, Reason: "components must be within [1, 3]"}
		}
	}
	return &RefractionMaterial{
		Source:   src,
		Strength: 1,
		Fallback: fauxgl.Color{R: 1, G: 1, B: 1, A: 1},
		u:        Uniforms{IOR: ior},
	}, nil
}

// Uniforms returns the current uniform values.
func (m *RefractionMaterial) Uniforms() Uniforms { return m.u }

// bind points the texture uniform at the latest capture.
func (m *RefractionMaterial) bind(tex *render.Texture) { m.u.Texture = tex }

// setTarget swaps texture and resolution together so a resized capture
// target is never paired with a stale resolution.
func (m *RefractionMaterial) setTarget(tex *render.Texture, width, height int) {
	m.u.Texture = tex
	m.u.Resolution = ms2.Vec{X: float32(width), Y: float32(height)}
}

// Shader returns a shader bound to a snapshot of the current uniforms.
func (m *RefractionMaterial) Shader(env *scene.Environment) fauxgl.Shader {
	return &glassShader{env: env, u: m.u, strength: m.Strength, fallback: m.Fallback}
}

type glassShader struct {
	env      *scene.Environment
	u        Uniforms
	strength float32
	fallback fauxgl.Color
}

func (s *glassShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	return s.env.WorldVertex(v)
}

func (s *glassShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	tex := s.u.Texture
	res := s.u.Resolution
	if tex == nil || res.X <= 0 || res.Y <= 0 {
		return s.fallback
	}
	fx, fy := s.env.FragCoord(v.Position)
	// Window coordinates grow downwards, texture coordinates upwards.
	uv := ms2.Vec{X: float32(fx) / res.X, Y: 1 - float32(fy)/res.Y}
	offsets := s.viewOffsets(v.Position, v.Normal)
	r := sample(tex, ms2.Add(uv, offsets[0])).R
	g := sample(tex, ms2.Add(uv, offsets[1])).G
	b := sample(tex, ms2.Add(uv, offsets[2])).B
	return fauxgl.Color{R: r, G: g, B: b, A: 1}
}

// viewOffsets refracts in camera space, where the eye is the origin and x, y
// follow the texture's u, v axes.
func (s *glassShader) viewOffsets(world, normal fauxgl.Vector) [3]ms2.Vec {
	incident := s.env.View.MulPosition(world)
	n := s.env.View.MulDirection(normal)
	return refractOffsets(vec3(incident), vec3(n), s.u.IOR, s.strength)
}

func sample(tex *render.Texture, uv ms2.Vec) fauxgl.Color {
	return tex.Sample(float64(uv.X), float64(uv.Y))
}

func vec3(v fauxgl.Vector) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// refractOffsets returns the texture space offset of each color channel for
// a camera space view ray with direction incident hitting a surface with
// normal n.
// A channel with an IOR of one has no offset.
func refractOffsets(incident, n, ior ms3.Vec, strength float32) (offsets [3]ms2.Vec) {
	i := ms3.Unit(incident)
	n = ms3.Unit(n)
	if ms3.Dot(i, n) > 0 {
		// Seen from inside, refract against the flipped normal.
		n = ms3.Scale(-1, n)
	}
	for c, eta := range [3]float32{ior.X, ior.Y, ior.Z} {
		d := ms3.Sub(refract(i, n, 1/eta), i)
		offsets[c] = ms2.Scale(strength, ms2.Vec{X: d.X, Y: d.Y})
	}
	return offsets
}

// refract follows GLSL: for total internal reflection it returns the zero
// vector.
func refract(i, n ms3.Vec, eta float32) ms3.Vec {
	if eta == 1 {
		return i
	}
	d := ms3.Dot(n, i)
	k := 1 - eta*eta*(1-d*d)
	if k < 0 {
		return ms3.Vec{}
	}
	return ms3.Sub(ms3.Scale(eta, i), ms3.Scale(eta*d+math32.Sqrt(k), n))
}
