package asset

import (
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ kdtree.Comparable = weldVertex{}

// Weld snaps every vertex of mesh to the first vertex seen within tol of it
// and removes the triangles that collapse as a result. Welding makes
// vertices that differ by float32 round off identical, which
// fauxgl's normal smoothing relies on. Triangles with a moved vertex get
// their face normal back on all three vertices. It returns the number of
// vertices that moved and the number of triangles removed.
func Weld(mesh *fauxgl.Mesh, tol float64) (moved, removed int) {
	if tol <= 0 || len(mesh.Triangles) == 0 {
		return 0, 0
	}
	tol2 := tol * tol
	var tree kdtree.Tree
	snap := func(v *fauxgl.Vertex) bool {
		p := weldVertex(r3.Vec{X: v.Position.X, Y: v.Position.Y, Z: v.Position.Z})
		got, d2 := tree.Nearest(p)
		if got == nil || d2 > tol2 {
			tree.Insert(p, false)
			return false
		}
		q := got.(weldVertex)
		if d2 == 0 {
			return false
		}
		v.Position = fauxgl.Vector{X: q.X, Y: q.Y, Z: q.Z}
		moved++
		return true
	}
	kept := mesh.Triangles[:0]
	for _, t := range mesh.Triangles {
		m1 := snap(&t.V1)
		m2 := snap(&t.V2)
		m3 := snap(&t.V3)
		if t.V1.Position == t.V2.Position || t.V2.Position == t.V3.Position || t.V3.Position == t.V1.Position {
			removed++
			continue
		}
		if m1 || m2 || m3 {
			n := t.Normal()
			t.V1.Normal, t.V2.Normal, t.V3.Normal = n, n, n
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(mesh.Triangles); i++ {
		mesh.Triangles[i] = nil
	}
	mesh.Triangles = kept
	return moved, removed
}

// smooth welds and smooths the normals of mesh according to opts.
func smooth(mesh *fauxgl.Mesh, opts ImportOptions) {
	if opts.WeldTolerance > 0 {
		moved, removed := Weld(mesh, opts.WeldTolerance)
		if moved > 0 || removed > 0 {
			logger().Debug("welded mesh", "moved", moved, "removed", removed)
		}
	}
	if opts.SmoothAngle > 0 {
		mesh.SmoothNormalsThreshold(math.Min(opts.SmoothAngle, math.Pi))
	}
}

type weldVertex r3.Vec

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a weldVertex) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	bv := b.(weldVertex)
	switch d {
	case 0:
		return a.X - bv.X
	case 1:
		return a.Y - bv.Y
	default:
		return a.Z - bv.Z
	}
}

func (weldVertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between a and b.
func (a weldVertex) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(r3.Vec(a), r3.Vec(b.(weldVertex))))
}
