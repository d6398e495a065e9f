package aperture

import "math"

// Point is a pixel position.
type Point struct {
	X, Y float64
}

// Shape is a pixel-space region that can be rasterized.
type Shape interface {
	// Contains reports whether (x, y) lies inside or on the boundary.
	Contains(x, y float64) bool
	// Bounds returns an axis-aligned box enclosing the shape.
	Bounds() (minX, minY, maxX, maxY float64)
}

// boundaryEpsilon absorbs rounding so pixel centres exactly on a boundary are included.
const boundaryEpsilon = 1e-9

// Ellipse is an elliptical aperture. Angle is in degrees, counter-clockwise
// from the +x pixel axis to the semi-major axis.
type Ellipse struct {
	Center    Point
	SemiMajor float64
	SemiMinor float64
	Angle     float64
}

// Contains implements Shape.
func (e Ellipse) Contains(x, y float64) bool {
	if e.SemiMajor <= 0 || e.SemiMinor <= 0 {
		return false
	}
	sin, cos := math.Sincos(e.Angle * math.Pi / 180)
	dx, dy := x-e.Center.X, y-e.Center.Y
	u := (dx*cos + dy*sin) / e.SemiMajor
	v := (-dx*sin + dy*cos) / e.SemiMinor
	return u*u+v*v <= 1+boundaryEpsilon
}

// Bounds implements Shape.
func (e Ellipse) Bounds() (minX, minY, maxX, maxY float64) {
	sin, cos := math.Sincos(e.Angle * math.Pi / 180)
	hx := math.Hypot(e.SemiMajor*cos, e.SemiMinor*sin)
	hy := math.Hypot(e.SemiMajor*sin, e.SemiMinor*cos)
	return e.Center.X - hx, e.Center.Y - hy, e.Center.X + hx, e.Center.Y + hy
}

// Circle is a circular aperture.
type Circle struct {
	Center Point
	Radius float64
}

// Contains implements Shape.
func (c Circle) Contains(x, y float64) bool {
	if c.Radius < 0 {
		return false
	}
	dx, dy := x-c.Center.X, y-c.Center.Y
	r2 := c.Radius * c.Radius
	return dx*dx+dy*dy <= r2+boundaryEpsilon*math.Max(1, r2)
}

// Bounds implements Shape.
func (c Circle) Bounds() (minX, minY, maxX, maxY float64) {
	return c.Center.X - c.Radius, c.Center.Y - c.Radius, c.Center.X + c.Radius, c.Center.Y + c.Radius
}
