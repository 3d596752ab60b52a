// Package segment defines the geometric pieces a route is made of.
package segment

import (
	"pic-router/internal/component"
	"pic-router/pkg/geometry"
)

// Kind identifies the shape of a segment.
type Kind string

const (
	KindStraight Kind = "straight"
	KindBend     Kind = "bend"
	KindTaper    Kind = "taper"
)

// Segment is one piece of a route. Headings are in degrees.
type Segment struct {
	Kind         Kind               `json:"kind"`
	Component    string             `json:"component"`        // straight, taper, euler, circular, ...
	Source       string             `json:"source,omitempty"` // connector that produced it
	Start        geometry.Point2D   `json:"start"`
	End          geometry.Point2D   `json:"end"`
	StartAngle   float64            `json:"start_angle"`
	EndAngle     float64            `json:"end_angle"`
	CrossSection string             `json:"cross_section"`
	Width1       float64            `json:"width1"`
	Width2       float64            `json:"width2"`
	Length       float64            `json:"length"`
	Angle        float64            `json:"angle,omitempty"` // bend turn
	Radius       float64            `json:"radius,omitempty"`
	Points       []geometry.Point2D `json:"points"`
}

// NewStraight creates a straight segment of the given length.
func NewStraight(start geometry.Point2D, heading, length float64, xs string, width float64) Segment {
	end := start.Add(geometry.Direction(heading).Scale(length))
	return Segment{
		Kind:         KindStraight,
		Component:    "straight",
		Start:        start,
		End:          end,
		StartAngle:   geometry.NormalizeAngle(heading),
		EndAngle:     geometry.NormalizeAngle(heading),
		CrossSection: xs,
		Width1:       width,
		Width2:       width,
		Length:       length,
		Points:       []geometry.Point2D{start, end},
	}
}

// NewTaper creates a linear taper from width1 to width2.
func NewTaper(start geometry.Point2D, heading, length float64, xs string, width1, width2 float64) Segment {
	s := NewStraight(start, heading, length, xs, width1)
	s.Kind = KindTaper
	s.Component = "taper"
	s.Width2 = width2
	return s
}

// FromBend places bend geometry so its input port sits at start with the given heading.
func FromBend(g component.Geometry, start geometry.Point2D, heading float64, xs string, width float64) Segment {
	tr := geometry.Placement(start, heading)
	points := make([]geometry.Point2D, len(g.Points))
	for i, p := range g.Points {
		points[i] = tr.Apply(p)
	}
	points[0] = start

	return Segment{
		Kind:         KindBend,
		Component:    g.Kind,
		Start:        start,
		End:          tr.Apply(g.End),
		StartAngle:   geometry.NormalizeAngle(heading),
		EndAngle:     geometry.NormalizeAngle(heading + g.Angle),
		CrossSection: xs,
		Width1:       width,
		Width2:       width,
		Length:       g.Length,
		Angle:        g.Angle,
		Radius:       g.Radius,
		Points:       points,
	}
}
