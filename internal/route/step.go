package route

import (
	"fmt"
	"math"
	"strings"

	"pic-router/pkg/geometry"
)

// Step steers a route through an intermediate corner. Positional fields are
// absolute (X, Y) or relative to the previous corner (DX, DY, DS). ExitAngle
// fixes the heading leaving the corner.
type Step struct {
	X         *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y         *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	DS        *float64 `json:"ds,omitempty" yaml:"ds,omitempty"`
	DX        *float64 `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY        *float64 `json:"dy,omitempty" yaml:"dy,omitempty"`
	ExitAngle *float64 `json:"exit_angle,omitempty" yaml:"exit_angle,omitempty"`

	// Overrides for the leg ending at this step.
	CrossSection string   `json:"cross_section,omitempty" yaml:"cross_section,omitempty"`
	Connector    string   `json:"connector,omitempty" yaml:"connector,omitempty"`
	Separation   *float64 `json:"separation,omitempty" yaml:"separation,omitempty"`
}

// Float returns a pointer to v, for building steps in code.
func Float(v float64) *float64 { return &v }

// constraint is one positional field that is set on a step.
type constraint struct {
	name  string
	value float64
}

func (s Step) constraints() []constraint {
	var cs []constraint
	for _, c := range []struct {
		name string
		v    *float64
	}{
		{"x", s.X}, {"y", s.Y}, {"ds", s.DS}, {"dx", s.DX}, {"dy", s.DY},
	} {
		if c.v != nil {
			cs = append(cs, constraint{name: c.name, value: *c.v})
		}
	}
	return cs
}

func names(cs []constraint) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.name
	}
	return strings.Join(parts, "+")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateSteps checks the whole step list before any geometry is computed.
// The incoming heading of the first step is fixed by the start port.
func ValidateSteps(routeName string, steps []Step) error {
	fixed := true
	for i, s := range steps {
		cs := s.constraints()
		for _, c := range cs {
			if !finite(c.value) {
				return newValidationError(routeName, i, "%s must be finite", c.name)
			}
		}
		if s.ExitAngle != nil && !finite(*s.ExitAngle) {
			return newValidationError(routeName, i, "exit_angle must be finite")
		}
		if s.DS != nil && *s.DS <= 0 {
			return newValidationError(routeName, i, "ds must be positive, got %g", *s.DS)
		}
		if s.Separation != nil && (!finite(*s.Separation) || *s.Separation < 0) {
			return newValidationError(routeName, i, "separation must be >= 0")
		}

		switch len(cs) {
		case 0:
			return newValidationError(routeName, i, "underconstrained: step needs one of x, y, ds, dx, dy")
		case 1:
		case 2:
			if fixed {
				return newValidationError(routeName, i,
					"overconstrained: %s with an incoming heading fixed by %s", names(cs), fixedBy(i))
			}
			if s.X != nil && s.DX != nil {
				return newValidationError(routeName, i, "overconstrained: x and dx both set")
			}
			if s.Y != nil && s.DY != nil {
				return newValidationError(routeName, i, "overconstrained: y and dy both set")
			}
		default:
			return newValidationError(routeName, i, "overconstrained: %s", names(cs))
		}

		fixed = s.ExitAngle != nil
	}
	return nil
}

func fixedBy(i int) string {
	if i == 0 {
		return "the start port"
	}
	return fmt.Sprintf("exit_angle of step %d", i-1)
}

// resolveStep places the corner for one step, starting from prev with the
// current heading. It returns the corner and the heading of the leg into it.
func resolveStep(routeName string, index int, s Step, prev geometry.Point2D, heading float64) (geometry.Point2D, float64, error) {
	cs := s.constraints()
	d := geometry.Direction(heading)

	if len(cs) == 1 {
		c := cs[0]
		var t float64
		switch c.name {
		case "ds":
			t = c.value
		case "x", "dx":
			delta := c.value
			if c.name == "x" {
				delta = c.value - prev.X
			}
			if math.Abs(d.X) < geometry.Tolerance {
				return geometry.Point2D{}, 0, newValidationError(routeName, index,
					"%s cannot be reached travelling at %g degrees", c.name, heading)
			}
			t = delta / d.X
		case "y", "dy":
			delta := c.value
			if c.name == "y" {
				delta = c.value - prev.Y
			}
			if math.Abs(d.Y) < geometry.Tolerance {
				return geometry.Point2D{}, 0, newValidationError(routeName, index,
					"%s cannot be reached travelling at %g degrees", c.name, heading)
			}
			t = delta / d.Y
		}
		if t <= geometry.Tolerance {
			return geometry.Point2D{}, 0, newValidationError(routeName, index,
				"corner does not move forward (%.6f along heading %g)", t, heading)
		}
		return prev.Add(d.Scale(t)), heading, nil
	}

	var delta geometry.Point2D
	switch {
	case s.DS != nil:
		ds := *s.DS
		var axis float64
		onX := s.X != nil || s.DX != nil
		switch {
		case s.X != nil:
			axis = *s.X - prev.X
		case s.DX != nil:
			axis = *s.DX
		case s.Y != nil:
			axis = *s.Y - prev.Y
		default:
			axis = *s.DY
		}
		if ds < math.Abs(axis)-geometry.Tolerance {
			return geometry.Point2D{}, 0, newValidationError(routeName, index,
				"unsatisfiable: ds %g is shorter than the axis offset %g", ds, math.Abs(axis))
		}
		other := math.Sqrt(math.Max(ds*ds-axis*axis, 0))
		var a, b geometry.Point2D
		if onX {
			a, b = geometry.Point2D{X: axis, Y: other}, geometry.Point2D{X: axis, Y: -other}
		} else {
			a, b = geometry.Point2D{X: other, Y: axis}, geometry.Point2D{X: -other, Y: axis}
		}
		delta = closestToHeading(a, b, d)
	default:
		x, y := prev.X, prev.Y
		if s.X != nil {
			x = *s.X
		} else {
			x += *s.DX
		}
		if s.Y != nil {
			y = *s.Y
		} else {
			y += *s.DY
		}
		delta = geometry.Point2D{X: x - prev.X, Y: y - prev.Y}
	}

	if delta.Norm() <= geometry.Tolerance {
		return geometry.Point2D{}, 0, newValidationError(routeName, index, "corner coincides with the previous one")
	}
	return prev.Add(delta), delta.Angle(), nil
}

// waypointSteps turns waypoints into steps. The first waypoint is reached
// along the current heading and each later one sets the heading of the leg
// into it. A last waypoint lying behind the end on its ray turns onto it.
func waypointSteps(routeName string, pos geometry.Point2D, heading float64, end rayEnd, wps []geometry.Point2D) ([]Step, error) {
	d := geometry.Direction(heading)
	first := wps[0].Sub(pos)
	along := first.Dot(d)
	if math.Abs(first.Cross(d)) > geometry.Tolerance*math.Max(1, along) || along <= geometry.Tolerance {
		return nil, newValidationError(routeName, 0,
			"waypoint (%g, %g) is not ahead on the start heading %g", wps[0].X, wps[0].Y, heading)
	}

	steps := make([]Step, len(wps))
	steps[0] = Step{DS: Float(along)}
	for i, w := range wps[1:] {
		steps[i+1] = Step{X: Float(w.X), Y: Float(w.Y)}
	}

	last := wps[len(wps)-1]
	out := geometry.Direction(end.Heading)
	back := last.Sub(end.P)
	if t := back.Dot(out); t > geometry.Tolerance && math.Abs(back.Cross(out)) <= geometry.Tolerance*math.Max(1, t) {
		steps[len(steps)-1].ExitAngle = Float(geometry.NormalizeAngle(end.Heading + 180))
	}
	return steps, ValidateSteps(routeName, steps)
}

// closestToHeading picks the candidate whose direction best matches d.
// Ties go to the counter-clockwise candidate.
func closestToHeading(a, b, d geometry.Point2D) geometry.Point2D {
	da, db := a.Unit().Dot(d), b.Unit().Dot(d)
	if math.Abs(da-db) < 1e-12 {
		if d.Cross(a) >= d.Cross(b) {
			return a
		}
		return b
	}
	if da > db {
		return a
	}
	return b
}
