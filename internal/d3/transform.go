package d3

import (
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compose returns the model matrix for a translation to position, an
// Euler XYZ rotation (radians) and a per-axis scale. The result equals
//  T * Rx * Ry * Rz * S
// so the scale is applied first and the translation last.
// The identity matrix is constructed with
//  Compose(r3.Vec{}, r3.Vec{}, Elem(1))
func Compose(position, rotation, scale r3.Vec) fauxgl.Matrix {
	a, b := math.Cos(rotation.X), math.Sin(rotation.X)
	c, d := math.Cos(rotation.Y), math.Sin(rotation.Y)
	e, f := math.Cos(rotation.Z), math.Sin(rotation.Z)
	ae, af, be, bf := a*e, a*f, b*e, b*f

	var m fauxgl.Matrix
	m.X00 = c * e * scale.X
	m.X01 = -c * f * scale.Y
	m.X02 = d * scale.Z
	m.X03 = position.X

	m.X10 = (af + be*d) * scale.X
	m.X11 = (ae - bf*d) * scale.Y
	m.X12 = -b * c * scale.Z
	m.X13 = position.Y

	m.X20 = (bf - ae*d) * scale.X
	m.X21 = (be + af*d) * scale.Y
	m.X22 = a * c * scale.Z
	m.X23 = position.Z

	m.X33 = 1
	return m
}

// NormalMatrix returns the matrix that maps object space normals of a model
// matrix to world space: the inverse transpose of m with translation removed.
func NormalMatrix(m fauxgl.Matrix) fauxgl.Matrix {
	m.X03, m.X13, m.X23 = 0, 0, 0
	return m.Inverse().Transpose()
}
