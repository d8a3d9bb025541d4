package scene

import (
	"math"

	"github.com/fogleman/fauxgl"
)

// NewSphere returns a UV sphere of the given radius centered at the origin.
// widthSegments divides the equator and heightSegments the meridians.
// Triangles are wound counter clockwise when seen from outside.
func NewSphere(radius float64, widthSegments, heightSegments int) *fauxgl.Mesh {
	widthSegments = max(widthSegments, 3)
	heightSegments = max(heightSegments, 2)
	grid := make([][]fauxgl.Vertex, heightSegments+1)
	for iy := range grid {
		v := float64(iy) / float64(heightSegments)
		row := make([]fauxgl.Vertex, widthSegments+1)
		for ix := range row {
			u := float64(ix) / float64(widthSegments)
			n := fauxgl.Vector{
				X: -math.Cos(u*2*math.Pi) * math.Sin(v*math.Pi),
				Y: math.Cos(v * math.Pi),
				Z: math.Sin(u*2*math.Pi) * math.Sin(v*math.Pi),
			}
			row[ix] = fauxgl.Vertex{
				Position: n.MulScalar(radius),
				Normal:   n,
				Texture:  fauxgl.Vector{X: u, Y: 1 - v},
			}
		}
		grid[iy] = row
	}
	var tris []*fauxgl.Triangle
	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			if iy != 0 {
				tris = append(tris, &fauxgl.Triangle{V1: a, V2: b, V3: d})
			}
			if iy != heightSegments-1 {
				tris = append(tris, &fauxgl.Triangle{V1: b, V2: c, V3: d})
			}
		}
	}
	return fauxgl.NewTriangleMesh(tris)
}

// NewPlane returns a width by height rectangle in the XY plane facing +Z.
func NewPlane(width, height float64) *fauxgl.Mesh {
	w, h := width/2, height/2
	n := fauxgl.Vector{Z: 1}
	v := func(x, y, u, t float64) fauxgl.Vertex {
		return fauxgl.Vertex{Position: fauxgl.Vector{X: x, Y: y}, Normal: n, Texture: fauxgl.Vector{X: u, Y: t}}
	}
	bl, br := v(-w, -h, 0, 0), v(w, -h, 1, 0)
	tl, tr := v(-w, h, 0, 1), v(w, h, 1, 1)
	return fauxgl.NewTriangleMesh([]*fauxgl.Triangle{
		{V1: bl, V2: br, V3: tr},
		{V1: bl, V2: tr, V3: tl},
	})
}
