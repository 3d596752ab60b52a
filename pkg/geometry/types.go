// Package geometry provides basic geometric types used throughout the router.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance is the default absolute tolerance for coordinate comparisons (µm).
const Tolerance = 1e-6

// Point2D represents a 2D point with floating-point coordinates.
// It doubles as a vector when used for directions and offsets.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Dot returns the dot product of p and other.
func (p Point2D) Dot(other Point2D) float64 {
	return p.X*other.X + p.Y*other.Y
}

// Cross returns the z component of p × other.
// Positive when other lies counter-clockwise of p.
func (p Point2D) Cross(other Point2D) float64 {
	return p.X*other.Y - p.Y*other.X
}

// Norm returns the length of the vector.
func (p Point2D) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Unit returns the vector scaled to length 1. The zero vector is returned unchanged.
func (p Point2D) Unit() Point2D {
	n := p.Norm()
	if n == 0 {
		return p
	}
	return Point2D{X: p.X / n, Y: p.Y / n}
}

// Perp returns the vector rotated by +90 degrees (the left normal).
func (p Point2D) Perp() Point2D {
	return Point2D{X: -p.Y, Y: p.X}
}

// Angle returns the heading of the vector in degrees, in (-180, 180].
func (p Point2D) Angle() float64 {
	return NormalizeAngle(math.Atan2(p.Y, p.X) * 180 / math.Pi)
}

// Equal reports whether two points coincide within tol.
func (p Point2D) Equal(other Point2D, tol float64) bool {
	return scalar.EqualWithinAbs(p.X, other.X, tol) && scalar.EqualWithinAbs(p.Y, other.Y, tol)
}

// Direction returns the unit vector for a heading in degrees.
// Multiples of 90 degrees are returned exactly.
func Direction(degrees float64) Point2D {
	switch a := NormalizeAngle(degrees); a {
	case 0:
		return Point2D{X: 1}
	case 90:
		return Point2D{Y: 1}
	case 180:
		return Point2D{X: -1}
	case -90:
		return Point2D{Y: -1}
	default:
		r := Radians(a)
		return Point2D{X: math.Cos(r), Y: math.Sin(r)}
	}
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// NormalizeAngle maps an angle in degrees into (-180, 180].
func NormalizeAngle(degrees float64) float64 {
	a := math.Mod(degrees, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}

// TurnAngle returns the signed turn in degrees from heading `from` to heading `to`.
// Positive turns are counter-clockwise.
func TurnAngle(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	x := math.Min(r.X, other.X)
	y := math.Min(r.Y, other.Y)
	x2 := math.Max(r.X+r.Width, other.X+other.Width)
	y2 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Expand grows the rectangle by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, Width: r.Width + 2*margin, Height: r.Height + 2*margin}
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Placement returns the transform that maps local coordinates (origin at 0,0, heading +x)
// onto origin with the given heading in degrees.
func Placement(origin Point2D, headingDegrees float64) AffineTransform {
	d := Direction(headingDegrees)
	return AffineTransform{A: d.X, B: -d.Y, TX: origin.X, C: d.Y, D: d.X, TY: origin.Y}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
