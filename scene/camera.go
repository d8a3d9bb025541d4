package scene

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a perspective camera looking from Position towards Target.
type Camera struct {
	// FOV is the vertical field of view in degrees.
	FOV    float64
	Aspect float64
	Near   float64
	Far    float64

	Position r3.Vec
	Target   r3.Vec
	// Up is the camera's up direction. The zero value means +Y.
	Up r3.Vec
}

// NewCamera returns a camera at the origin looking down -Z.
func NewCamera(fov, aspect, near, far float64) *Camera {
	return &Camera{
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: r3.Vec{Z: -1},
		Up:     r3.Vec{Y: 1},
	}
}

// SetAspect updates the projection aspect ratio. Non positive or non finite
// values are ignored so a collapsed window keeps the last good projection.
func (c *Camera) SetAspect(aspect float64) {
	if aspect > 0 && !math.IsInf(aspect, 0) {
		c.Aspect = aspect
	}
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target r3.Vec) { c.Target = target }

// Eye returns the camera position as a fauxgl vector.
func (c *Camera) Eye() fauxgl.Vector { return d3.V(c.Position) }

// View returns the world to camera matrix.
func (c *Camera) View() fauxgl.Matrix {
	up := c.Up
	if up == (r3.Vec{}) {
		up = r3.Vec{Y: 1}
	}
	return fauxgl.LookAt(d3.V(c.Position), d3.V(c.Target), d3.V(up))
}

// Matrix returns the combined view projection matrix.
func (c *Camera) Matrix() fauxgl.Matrix {
	return c.View().Perspective(c.FOV, c.Aspect, c.Near, c.Far)
}

// ViewVector is the vector from the target to the camera position.
func (c *Camera) ViewVector() r3.Vec { return r3.Sub(c.Position, c.Target) }
