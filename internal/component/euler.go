package component

import (
	"fmt"
	"math"

	"pic-router/pkg/geometry"
)

// DefaultEulerP is the default proportion of the bend that follows a clothoid.
const DefaultEulerP = 0.5

// eulerSubsteps is the number of integration steps per output sample.
const eulerSubsteps = 16

// EulerBend is a partial euler bend: clothoid, arc, clothoid. With
// ArcFloorplan set the curve is scaled so its endpoints match a circular bend
// of the same radius; otherwise radius is the minimum radius of curvature.
type EulerBend struct {
	P            float64
	ArcFloorplan bool
}

// NewEulerBend returns an euler bend with an arc floorplan.
func NewEulerBend(p float64) EulerBend {
	return EulerBend{P: p, ArcFloorplan: true}
}

// Name implements Bend.
func (EulerBend) Name() string { return Euler }

// Build implements Bend.
func (e EulerBend) Build(angle, radius float64) (Geometry, error) {
	if err := checkAngle(angle); err != nil {
		return Geometry{}, err
	}
	if radius <= 0 {
		return Geometry{}, fmt.Errorf("euler bend needs a positive radius, got %g", radius)
	}
	if e.P < 0 || e.P > 1 {
		return Geometry{}, fmt.Errorf("euler p must be within [0, 1], got %g", e.P)
	}
	if angle == 0 {
		return Geometry{Kind: Euler, Points: []geometry.Point2D{{}, {}}, Radius: radius, RadiusMin: radius}, nil
	}
	if e.P == 0 {
		g, err := CircularBend{}.Build(angle, radius)
		g.Kind = Euler
		return g, err
	}

	alpha := geometry.Radians(math.Abs(angle))

	// Unit clothoid: curvature grows as s (R0 = 1) up to sp, then a
	// constant-radius arc, then the mirrored clothoid.
	sp := math.Sqrt(e.P * alpha)
	rp := 1 / sp
	total := 2*sp + rp*alpha*(1-e.P)

	heading := func(s float64) float64 {
		switch {
		case s <= sp:
			return s * s / 2
		case s >= total-sp:
			r := total - s
			return alpha - r*r/2
		default:
			return e.P*alpha/2 + (s-sp)/rp
		}
	}

	n := sampleCount(angle)
	steps := n * eulerSubsteps
	h := total / float64(steps)

	raw := make([]geometry.Point2D, 0, n+1)
	raw = append(raw, geometry.Point2D{})
	var x, y float64
	for i := 0; i < steps; i++ {
		// Simpson's rule on each substep.
		s0 := float64(i) * h
		a0, am, a1 := heading(s0), heading(s0+h/2), heading(s0+h)
		x += h / 6 * (math.Cos(a0) + 4*math.Cos(am) + math.Cos(a1))
		y += h / 6 * (math.Sin(a0) + 4*math.Sin(am) + math.Sin(a1))
		if (i+1)%eulerSubsteps == 0 {
			raw = append(raw, geometry.Point2D{X: x, Y: y})
		}
	}

	sign := 1.0
	if angle < 0 {
		sign = -1
	}
	for i := range raw {
		raw[i].Y *= sign
	}
	rawEnd := raw[len(raw)-1]

	// Similarity transform fixing the origin and taking the raw end onto the
	// target end. The rotation part only absorbs integration error.
	var target geometry.Point2D
	if e.ArcFloorplan {
		target = arcEnd(angle, radius)
	} else {
		target = rawEnd.Scale(radius / rp)
	}
	den := rawEnd.Dot(rawEnd)
	zr := (target.X*rawEnd.X + target.Y*rawEnd.Y) / den
	zi := (target.Y*rawEnd.X - target.X*rawEnd.Y) / den
	scale := math.Hypot(zr, zi)

	points := make([]geometry.Point2D, len(raw))
	for i, p := range raw {
		points[i] = geometry.Point2D{X: zr*p.X - zi*p.Y, Y: zi*p.X + zr*p.Y}
	}
	points[len(points)-1] = target

	effective := radius
	if !e.ArcFloorplan {
		effective = effectiveRadius(angle, target)
	}

	return Geometry{
		Kind:      Euler,
		Angle:     angle,
		Radius:    effective,
		RadiusMin: rp * scale,
		Handle:    handleFor(angle, effective),
		Length:    total * scale,
		End:       target,
		Points:    points,
	}, nil
}

// effectiveRadius returns the radius of the circular bend with the same endpoints.
func effectiveRadius(angle float64, end geometry.Point2D) float64 {
	return end.Norm() / (2 * math.Sin(geometry.Radians(math.Abs(angle))/2))
}
