package render

import (
	"math"

	"github.com/fogleman/fauxgl"
)

// shadowMap is a depth-only fauxgl context rendered from a directional
// light's orthographic camera. The depth buffer holds fauxgl screen z in
// [0,1], smaller values are closer to the light, and untouched texels keep
// math.MaxFloat64.
type shadowMap struct {
	ctx    *fauxgl.Context
	matrix fauxgl.Matrix
	bias   float64
}

func newShadowMap(size int) *shadowMap {
	ctx := fauxgl.NewContext(size, size)
	ctx.WriteColor = false
	ctx.Cull = fauxgl.CullNone
	return &shadowMap{ctx: ctx}
}

func (s *shadowMap) size() int { return s.ctx.Width }

func (s *shadowMap) reset(matrix fauxgl.Matrix, bias float64) {
	s.matrix = matrix
	s.bias = bias
	s.ctx.ClearDepthBuffer()
}

func (s *shadowMap) drawMesh(mesh *fauxgl.Mesh, model fauxgl.Matrix) {
	s.ctx.Shader = fauxgl.NewSolidColorShader(s.matrix.Mul(model), fauxgl.White)
	s.ctx.DrawMesh(mesh)
}

// project maps a world space point to shadow map texel coordinates and
// screen depth, matching fauxgl's viewport transform.
func (s *shadowMap) project(p fauxgl.Vector) fauxgl.Vector {
	ndc := s.matrix.MulPosition(p)
	n := float64(s.size())
	return fauxgl.Vector{
		X: (ndc.X*0.5 + 0.5) * n,
		Y: (0.5 - ndc.Y*0.5) * n,
		Z: ndc.Z*0.5 + 0.5,
	}
}

// Visibility returns the fraction of the 3x3 texel neighbourhood around the
// projection of world that is not occluded. Points outside the light frustum
// are lit.
func (s *shadowMap) Visibility(world fauxgl.Vector) float64 {
	p := s.project(world)
	if p.Z < 0 || p.Z > 1 || math.IsNaN(p.Z) {
		return 1
	}
	z := p.Z + s.bias
	size := s.size()
	depth := s.ctx.DepthBuffer
	cx, cy := int(math.Floor(p.X)), int(math.Floor(p.Y))
	var lit float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= size || y >= size || z <= depth[y*size+x] {
				lit++
			}
		}
	}
	return lit / 9
}
