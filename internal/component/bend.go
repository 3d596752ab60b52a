// Package component provides the bend components placed at route corners.
package component

import (
	"errors"
	"fmt"
	"math"

	"pic-router/pkg/geometry"
)

// Bend family names.
const (
	Circular   = "circular"
	Euler      = "euler"
	WireCorner = "wire_corner"
)

// ErrReversal is returned for turns of 180 degrees or more, which no single bend can make.
var ErrReversal = errors.New("bend angle must be below 180 degrees")

// Geometry is a bend instance in its local frame: it starts at the origin
// heading +x and ends at End heading Angle. Both ports sit Handle away from
// the virtual corner at (Handle, 0).
type Geometry struct {
	Kind      string             `json:"kind"`
	Angle     float64            `json:"angle"`  // signed turn, degrees
	Radius    float64            `json:"radius"` // effective radius
	RadiusMin float64            `json:"radius_min"`
	Handle    float64            `json:"handle"`
	Length    float64            `json:"length"`
	End       geometry.Point2D   `json:"end"`
	Points    []geometry.Point2D `json:"points"`
}

// NBend90 returns the bend expressed as a number of 90 degree bends.
func (g Geometry) NBend90() float64 {
	return math.Abs(g.Angle) / 90
}

// Bend builds bend geometry for a signed turn angle and radius.
type Bend interface {
	Name() string
	Build(angle, radius float64) (Geometry, error)
}

// pointsPer360 controls centerline sampling density.
const pointsPer360 = 720

func sampleCount(angle float64) int {
	n := int(math.Ceil(math.Abs(angle) / 360 * pointsPer360))
	if n < 2 {
		n = 2
	}
	return n
}

func checkAngle(angle float64) error {
	if math.IsNaN(angle) || math.Abs(angle) >= 180 {
		return fmt.Errorf("%w: got %g", ErrReversal, angle)
	}
	return nil
}

// handleFor returns the distance from the virtual corner to each port of a
// symmetric bend with the endpoints of a circular arc.
func handleFor(angle, radius float64) float64 {
	return radius * math.Tan(geometry.Radians(math.Abs(angle))/2)
}

// arcEnd returns the endpoint of a circular arc in the local frame.
func arcEnd(angle, radius float64) geometry.Point2D {
	a := geometry.Radians(angle)
	sign := 1.0
	if angle < 0 {
		sign = -1
	}
	return geometry.Point2D{X: radius * math.Sin(math.Abs(a)), Y: sign * radius * (1 - math.Cos(a))}
}

// CircularBend is a constant-radius arc.
type CircularBend struct{}

// Name implements Bend.
func (CircularBend) Name() string { return Circular }

// Build implements Bend.
func (CircularBend) Build(angle, radius float64) (Geometry, error) {
	if err := checkAngle(angle); err != nil {
		return Geometry{}, err
	}
	if radius <= 0 {
		return Geometry{}, fmt.Errorf("circular bend needs a positive radius, got %g", radius)
	}

	n := sampleCount(angle)
	points := make([]geometry.Point2D, n+1)
	for i := 0; i <= n; i++ {
		points[i] = arcEnd(angle*float64(i)/float64(n), radius)
	}
	end := arcEnd(angle, radius)
	points[n] = end

	return Geometry{
		Kind:      Circular,
		Angle:     angle,
		Radius:    radius,
		RadiusMin: radius,
		Handle:    handleFor(angle, radius),
		Length:    radius * geometry.Radians(math.Abs(angle)),
		End:       end,
		Points:    points,
	}, nil
}

// WireCornerBend is a sharp corner for cross-sections without a bend radius.
type WireCornerBend struct{}

// Name implements Bend.
func (WireCornerBend) Name() string { return WireCorner }

// Build implements Bend. The radius is ignored.
func (WireCornerBend) Build(angle, _ float64) (Geometry, error) {
	if err := checkAngle(angle); err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Kind:   WireCorner,
		Angle:  angle,
		Points: []geometry.Point2D{{}, {}},
	}, nil
}
