// Package port defines the optical ports that routes start and end on.
package port

import (
	"fmt"
	"math"

	"pic-router/pkg/geometry"
)

// Port is a connection point on a component. Orientation points outward,
// away from the component body, in degrees counter-clockwise from +x.
type Port struct {
	Name         string           `json:"name" yaml:"name"`
	Center       geometry.Point2D `json:"center" yaml:"center"`
	Orientation  float64          `json:"orientation" yaml:"orientation"` // degrees
	Width        float64          `json:"width" yaml:"width"`             // µm
	CrossSection string           `json:"cross_section,omitempty" yaml:"cross_section,omitempty"`
	Layer        string           `json:"layer,omitempty" yaml:"layer,omitempty"`
}

// New creates a port at (x, y).
func New(name string, x, y, orientation, width float64) Port {
	return Port{
		Name:        name,
		Center:      geometry.Point2D{X: x, Y: y},
		Orientation: orientation,
		Width:       width,
	}
}

// Validate checks the port for values the router cannot work with.
func (p Port) Validate() error {
	if math.IsNaN(p.Center.X) || math.IsNaN(p.Center.Y) ||
		math.IsInf(p.Center.X, 0) || math.IsInf(p.Center.Y, 0) {
		return fmt.Errorf("port %q: center must be finite", p.Name)
	}
	if math.IsNaN(p.Orientation) || math.IsInf(p.Orientation, 0) {
		return fmt.Errorf("port %q: orientation must be finite", p.Name)
	}
	if p.Width < 0 {
		return fmt.Errorf("port %q: width %g must be >= 0", p.Name, p.Width)
	}
	return nil
}

// Direction returns the outward unit vector.
func (p Port) Direction() geometry.Point2D {
	return geometry.Direction(p.Orientation)
}

// Flipped returns a copy facing the opposite way.
func (p Port) Flipped() Port {
	p.Orientation = geometry.NormalizeAngle(p.Orientation + 180)
	return p
}

// MoveCopy returns a copy translated by (dx, dy).
func (p Port) MoveCopy(dx, dy float64) Port {
	p.Center = p.Center.Add(geometry.Point2D{X: dx, Y: dy})
	return p
}

// WithOrientation returns a copy with a different orientation.
func (p Port) WithOrientation(deg float64) Port {
	p.Orientation = deg
	return p
}

func (p Port) String() string {
	return fmt.Sprintf("%s(%.3f, %.3f, %g°)", p.Name, p.Center.X, p.Center.Y, p.Orientation)
}
