package scene

import (
	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// LightShadow configures the orthographic shadow camera of a light.
type LightShadow struct {
	MapSize                  int
	Near, Far                float64
	Left, Right, Top, Bottom float64
	// Bias is added to the light space depth, in [0,1] depth buffer units,
	// before comparison.
	Bias float64
}

// DirectionalLight illuminates the scene from Position towards Target.
type DirectionalLight struct {
	Color      fauxgl.Color
	Intensity  float64
	Position   r3.Vec
	Target     r3.Vec
	CastShadow bool
	Shadow     LightShadow
}

// NewDirectionalLight returns a white light pointing at the origin from
// above with a 512 texel shadow map.
func NewDirectionalLight(color fauxgl.Color, intensity float64) *DirectionalLight {
	return &DirectionalLight{
		Color:     color,
		Intensity: intensity,
		Position:  r3.Vec{Y: 1},
		Shadow: LightShadow{
			MapSize: 512,
			Near:    0.5,
			Far:     500,
			Left:    -5, Right: 5, Top: 5, Bottom: -5,
		},
	}
}

// Direction returns the unit vector pointing from the surface towards the
// light.
func (l *DirectionalLight) Direction() fauxgl.Vector {
	return d3.V(r3.Sub(l.Position, l.Target)).Normalize()
}

// ShadowMatrix returns the world to light clip space matrix of the shadow
// camera.
func (l *DirectionalLight) ShadowMatrix() fauxgl.Matrix {
	up := fauxgl.Vector{Y: 1}
	dir := l.Direction()
	if abs(dir.Dot(up)) > 0.999 {
		up = fauxgl.Vector{Z: 1}
	}
	view := fauxgl.LookAt(d3.V(l.Position), d3.V(l.Target), up)
	s := l.Shadow
	return fauxgl.Orthographic(s.Left, s.Right, s.Bottom, s.Top, s.Near, s.Far).Mul(view)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
