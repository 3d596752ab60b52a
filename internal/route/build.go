package route

import (
	"fmt"
	"math"

	"pic-router/internal/component"
	"pic-router/internal/connector"
	"pic-router/internal/port"
	"pic-router/internal/segment"
	"pic-router/internal/xsection"
	"pic-router/pkg/geometry"
)

// leg is the span between two backbone nodes.
type leg struct {
	xs            xsection.CrossSection
	connector     connector.Connector
	connectorName string
}

func widthOr(w float64, xs xsection.CrossSection) float64 {
	if w > 0 {
		return w
	}
	return xs.Width
}

// build turns a backbone into segments: bends at every corner that turns,
// connectors on the spans between them.
func (r *Router) build(start, end port.Port, res resolved, nodes []node) (*Route, error) {
	name := res.name
	n := len(nodes)

	legs := make([]leg, n-1)
	for i := range legs {
		l := leg{xs: res.xs, connectorName: res.connector}
		if xsName := nodes[i+1].legCrossSection; xsName != "" {
			l.xs, _ = r.reg.CrossSections.Get(xsName)
		}
		if c := nodes[i+1].legConnector; c != "" {
			l.connectorName = c
		}
		c, ok := r.reg.Connectors.Get(l.connectorName)
		if !ok {
			return nil, &ConfigurationError{Route: name, Kind: "connector", Name: l.connectorName}
		}
		l.connector = c
		legs[i] = l
	}

	// A corner's bend uses the cross-section of the leg arriving at it.
	bends := make([]*component.Geometry, n)
	bendNames := make([]string, n)
	for i := 1; i < n-1; i++ {
		turn := geometry.TurnAngle(nodes[i-1].Out, nodes[i].Out)
		if math.Abs(turn) <= angleTolerance {
			continue
		}
		bendName, radius := res.bendFor(legs[i-1].xs)
		g, err := r.reg.Bends.Build(bendName, turn, radius)
		if err != nil {
			return nil, &GeometryError{Route: name, Step: nodes[i].Step,
				Err: fmt.Errorf("corner at (%.3f, %.3f): %w", nodes[i].P.X, nodes[i].P.Y, err)}
		}
		bends[i] = &g
		bendNames[i] = bendName
	}
	handle := func(i int) float64 {
		if bends[i] == nil {
			return 0
		}
		return bends[i].Handle
	}

	if turn := geometry.TurnAngle(nodes[n-2].Out, nodes[n-1].Out); math.Abs(turn) > headingTolerance {
		return nil, newGeometryError(name, noStep, "route arrives at %g degrees, port %s needs %g",
			nodes[n-2].Out, end.Name, nodes[n-1].Out)
	}

	for i := 0; i < n-1; i++ {
		d := geometry.Direction(nodes[i].Out)
		delta := nodes[i+1].P.Sub(nodes[i].P)
		length := delta.Dot(d)
		if math.Abs(delta.Cross(d)) > geometry.Tolerance*math.Max(1, length) || length < -geometry.Tolerance {
			return nil, newGeometryError(name, nodes[i+1].Step,
				"degenerate placement: corner (%.3f, %.3f) is not ahead on heading %g",
				nodes[i+1].P.X, nodes[i+1].P.Y, nodes[i].Out)
		}
		need := handle(i) + handle(i+1)
		if length < need-geometry.Tolerance {
			return nil, newGeometryError(name, nodes[i+1].Step,
				"bend handles do not fit: leg %d is %.3f long, bends need %.3f", i, length, need)
		}
		if i == 0 {
			need += res.startStraight
		}
		if i == n-2 {
			need += res.endStraight
		}
		if length < need-geometry.Tolerance {
			return nil, newGeometryError(name, nodes[i+1].Step,
				"leg %d is %.3f long, bends and end straights need %.3f", i, length, need)
		}
	}

	if err := checkSelfIntersection(name, nodes); err != nil {
		return nil, err
	}

	var segs []segment.Segment
	cursor := start.Center
	width := widthOr(start.Width, legs[0].xs)
	for i := 0; i < n-1; i++ {
		l := legs[i]
		heading := nodes[i].Out

		next := nodes[i+1].P.Sub(geometry.Direction(heading).Scale(handle(i + 1)))
		nextWidth := l.xs.Width
		if i == n-2 {
			next = end.Center
			nextWidth = widthOr(end.Width, l.xs)
		}

		p1 := port.Port{Name: fmt.Sprintf("leg%d.o1", i), Center: cursor, Orientation: heading,
			Width: width, CrossSection: l.xs.Name}
		p2 := port.Port{Name: fmt.Sprintf("leg%d.o2", i), Center: next, Orientation: heading + 180,
			Width: nextWidth, CrossSection: l.xs.Name}
		spans, err := l.connector.Connect(p1, p2, l.xs)
		if err != nil {
			return nil, &GeometryError{Route: name, Step: nodes[i+1].Step,
				Err: fmt.Errorf("connector %s on leg %d: %w", l.connectorName, i, err)}
		}
		for j := range spans {
			if spans[j].Source == "" {
				spans[j].Source = l.connectorName
			}
		}
		if len(spans) > 0 {
			segs = append(segs, spans...)
			cursor = spans[len(spans)-1].End
		}
		width = nextWidth

		if b := bends[i+1]; b != nil {
			s := segment.FromBend(*b, cursor, heading, l.xs.Name, l.xs.Width)
			s.Source = bendNames[i+1]
			segs = append(segs, s)
			cursor = s.End
		}
	}

	if len(segs) == 0 {
		return nil, newGeometryError(name, noStep, "degenerate placement: route has no segments")
	}
	last := &segs[len(segs)-1]
	if last.End.Equal(end.Center, geometry.Tolerance) {
		last.End = end.Center
		last.Points[len(last.Points)-1] = end.Center
	}

	backbone := make([]geometry.Point2D, n)
	for i, nd := range nodes {
		backbone[i] = nd.P
	}

	route := &Route{
		Name:         name,
		Start:        start,
		End:          end,
		CrossSection: res.xs.Name,
		Segments:     segs,
		Backbone:     backbone,
	}
	if err := route.CheckContinuity(geometry.Tolerance); err != nil {
		return nil, &GeometryError{Route: name, Step: noStep, Err: err}
	}
	route.Info = ComputeInfo(segs, r.LossModel())

	r.logger.Debug().
		Str("route", name).
		Int("segments", len(segs)).
		Float64("length", route.Info.Length).
		Float64("n_bend_90", route.Info.NBend90).
		Msg("route built")
	return route, nil
}

// checkSelfIntersection rejects backbones whose non-adjacent legs cross.
func checkSelfIntersection(name string, nodes []node) error {
	pts := make([]geometry.Point2D, len(nodes))
	for i, nd := range nodes {
		pts[i] = nd.P
	}
	if i, j, ok := firstCrossing(pts); ok {
		return newGeometryError(name, nodes[j].Step, "route crosses itself between legs %d and %d", i, j)
	}
	return nil
}
