package d3

import (
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"
)

// R3 vector routines shared by the scene graph and the importers.

// Elem returns a vector with all components set to sides.
func Elem(sides float64) r3.Vec {
	return r3.Vec{
		X: sides,
		Y: sides,
		Z: sides,
	}
}

func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// V converts a gonum vector to a fauxgl vector.
func V(a r3.Vec) fauxgl.Vector { return fauxgl.Vector{X: a.X, Y: a.Y, Z: a.Z} }

// R3 converts a fauxgl vector to a gonum vector.
func R3(a fauxgl.Vector) r3.Vec { return r3.Vec{X: a.X, Y: a.Y, Z: a.Z} }

// FromArray converts a config triple to a vector.
func FromArray(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
