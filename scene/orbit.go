package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OrbitControls moves a camera on a sphere around a target point. Input
// handlers call Rotate, Dolly and Pan; each call leaves the camera looking at
// the target.
type OrbitControls struct {
	Camera *Camera
	Target r3.Vec

	RotateSpeed float64
	ZoomSpeed   float64
	PanSpeed    float64

	MinDistance float64
	MaxDistance float64
	// MinPolar and MaxPolar bound the angle from the +Y axis in radians.
	MinPolar float64
	MaxPolar float64
}

const polarEpsilon = 1e-6

// NewOrbitControls returns controls orbiting cam around the origin.
func NewOrbitControls(cam *Camera) *OrbitControls {
	return &OrbitControls{
		Camera:      cam,
		RotateSpeed: 1,
		ZoomSpeed:   1,
		PanSpeed:    1,
		MinDistance: 0,
		MaxDistance: math.Inf(1),
		MinPolar:    0,
		MaxPolar:    math.Pi,
	}
}

// spherical returns radius, polar angle from +Y and azimuth around +Y of the
// camera relative to the target.
func (o *OrbitControls) spherical() (radius, polar, azimuth float64) {
	off := r3.Sub(o.Camera.Position, o.Target)
	radius = r3.Norm(off)
	if radius == 0 {
		return 0, math.Pi / 2, 0
	}
	polar = math.Acos(math.Max(-1, math.Min(1, off.Y/radius)))
	azimuth = math.Atan2(off.X, off.Z)
	return radius, polar, azimuth
}

func (o *OrbitControls) place(radius, polar, azimuth float64) {
	polar = math.Max(o.MinPolar, math.Min(o.MaxPolar, polar))
	polar = math.Max(polarEpsilon, math.Min(math.Pi-polarEpsilon, polar))
	radius = math.Max(o.MinDistance, math.Min(o.MaxDistance, radius))
	sinP := math.Sin(polar)
	off := r3.Vec{
		X: radius * sinP * math.Sin(azimuth),
		Y: radius * math.Cos(polar),
		Z: radius * sinP * math.Cos(azimuth),
	}
	o.Camera.Position = r3.Add(o.Target, off)
	o.Camera.LookAt(o.Target)
}

// Rotate orbits the camera by the given angles in radians: dAzimuth around
// the vertical axis and dPolar towards or away from it.
func (o *OrbitControls) Rotate(dAzimuth, dPolar float64) {
	r, p, a := o.spherical()
	o.place(r, p-dPolar*o.RotateSpeed, a-dAzimuth*o.RotateSpeed)
}

// RotatePixels converts a pointer drag in pixels into a rotation where
// dragging across the full viewport height turns the camera a full circle.
func (o *OrbitControls) RotatePixels(dx, dy float64, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	k := 2 * math.Pi / float64(viewportHeight)
	o.Rotate(dx*k, dy*k)
}

// Dolly scales the camera distance to the target. Values above one move
// the camera away.
func (o *OrbitControls) Dolly(scale float64) {
	if scale <= 0 {
		return
	}
	r, p, a := o.spherical()
	o.place(r*math.Pow(scale, o.ZoomSpeed), p, a)
}

// Pan moves the camera and target in the view plane. dx and dy are
// fractions of the distance to the target.
func (o *OrbitControls) Pan(dx, dy float64) {
	view := o.Camera.ViewVector()
	dist := r3.Norm(view)
	if dist == 0 {
		return
	}
	up := o.Camera.Up
	if up == (r3.Vec{}) {
		up = r3.Vec{Y: 1}
	}
	right := r3.Unit(r3.Cross(up, view))
	camUp := r3.Unit(r3.Cross(view, right))
	delta := r3.Add(r3.Scale(-dx*dist*o.PanSpeed, right), r3.Scale(dy*dist*o.PanSpeed, camUp))
	o.Target = r3.Add(o.Target, delta)
	o.Camera.Position = r3.Add(o.Camera.Position, delta)
	o.Camera.LookAt(o.Target)
}

// Update re-applies the constraints and points the camera at the target.
func (o *OrbitControls) Update() {
	o.place(o.spherical())
}
