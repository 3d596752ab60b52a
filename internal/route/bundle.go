package route

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"pic-router/internal/port"
	"pic-router/pkg/geometry"
)

// BundleOptions controls a bundle. The embedded Options apply to every member;
// Name names the bundle and members are named Name[i].
type BundleOptions struct {
	Options
	Separation *float64 // centerline pitch; defaults to the cross-section separation
}

// Bundle routes starts[i] to ends[i] along a shared backbone, keeping the
// members Separation apart at every corner. Members are ranked by the lateral
// order of their start ports and the ends must keep that order.
func (r *Router) Bundle(ctx context.Context, starts, ends []port.Port, opts BundleOptions) ([]*Route, error) {
	name := opts.Name
	if len(starts) == 0 || len(starts) != len(ends) {
		return nil, newValidationError(name, noStep, "bundle needs matching start and end ports, got %d and %d",
			len(starts), len(ends))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(starts) == 1 {
		rt, err := r.Route(starts[0], ends[0], opts.Options)
		if err != nil {
			return nil, err
		}
		return []*Route{rt}, nil
	}

	for i := range starts {
		if err := r.checkPorts(fmt.Sprintf("%s[%d]", name, i), starts[i], ends[i]); err != nil {
			return nil, err
		}
	}
	if err := sameOrientation(name, "start", starts); err != nil {
		return nil, err
	}
	if err := sameOrientation(name, "end", ends); err != nil {
		return nil, err
	}

	res, err := r.resolve(opts.Options)
	if err != nil {
		return nil, err
	}
	separation := res.xs.Separation()
	if opts.Separation != nil {
		if !finite(*opts.Separation) || *opts.Separation < 0 {
			return nil, newValidationError(name, noStep, "separation must be >= 0")
		}
		separation = *opts.Separation
	}

	axisStart, axisEnd := axisPort(starts), axisPort(ends)
	startLateral := lateralOffsets(starts, axisStart.Center, axisStart.Orientation)
	endLateral := lateralOffsets(ends, axisEnd.Center, axisEnd.Orientation+180)

	order := make([]int, len(starts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return startLateral[order[a]] < startLateral[order[b]] })
	for k := 1; k < len(order); k++ {
		if endLateral[order[k]] <= endLateral[order[k-1]] {
			return nil, newValidationError(name, noStep,
				"end ports %s and %s are not in the lateral order of their start ports",
				ends[order[k-1]].Name, ends[order[k]].Name)
		}
	}

	_, axis, err := r.plan(axisStart, axisEnd, opts.Options)
	if err != nil {
		return nil, fmt.Errorf("bundle axis: %w", err)
	}
	// Only inner legs are moved to the bundle pitch. Without two corners the
	// members keep their port pitch all the way.
	if len(axis)-2 < 2 {
		if err := checkPitch(name, "start", starts, startLateral, order, separation); err != nil {
			return nil, err
		}
		if err := checkPitch(name, "end", ends, endLateral, order, separation); err != nil {
			return nil, err
		}
	}

	routes := make([]*Route, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	if !r.cfg.Parallel {
		g.SetLimit(1)
	}
	for rank, idx := range order {
		rank, idx := rank, idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			member := res
			member.name = fmt.Sprintf("%s[%d]", name, idx)
			offset := float64(rank) - float64(len(starts)-1)/2

			nodes, err := offsetBackbone(member.name, axis, starts[idx], ends[idx],
				startLateral[idx], endLateral[idx], offset, separation)
			if err != nil {
				return err
			}
			rt, err := r.build(starts[idx], ends[idx], member, nodes)
			if err != nil {
				return err
			}
			routes[idx] = rt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("bundle", name).
		Int("routes", len(routes)).
		Float64("separation", separation).
		Msg("bundle routed")
	return routes, nil
}

func sameOrientation(name, which string, ports []port.Port) error {
	for _, p := range ports[1:] {
		if math.Abs(geometry.TurnAngle(ports[0].Orientation, p.Orientation)) > angleTolerance {
			return newValidationError(name, noStep, "bundle %s ports must share an orientation: %s is %g, %s is %g",
				which, ports[0].Name, ports[0].Orientation, p.Name, p.Orientation)
		}
	}
	return nil
}

func checkPitch(name, which string, ports []port.Port, lateral []float64, order []int, separation float64) error {
	for k := 1; k < len(order); k++ {
		a, b := order[k-1], order[k]
		if pitch := math.Abs(lateral[b] - lateral[a]); pitch < separation-geometry.Tolerance {
			return newValidationError(name, noStep,
				"%s ports %s and %s are %g apart, below the separation %g; add steps so the bundle can fan out",
				which, ports[a].Name, ports[b].Name, pitch, separation)
		}
	}
	return nil
}

// axisPort is the virtual port at the centroid of a port group.
func axisPort(ports []port.Port) port.Port {
	centers := make([]geometry.Point2D, len(ports))
	for i, p := range ports {
		centers[i] = p.Center
	}
	return port.Port{
		Name:        "axis",
		Center:      geometry.Centroid(centers),
		Orientation: ports[0].Orientation,
		Width:       ports[0].Width,
	}
}

// lateralOffsets measures each port to the left of the line through origin
// with the given travel heading.
func lateralOffsets(ports []port.Port, origin geometry.Point2D, heading float64) []float64 {
	d := geometry.Direction(heading)
	out := make([]float64, len(ports))
	for i, p := range ports {
		out[i] = d.Cross(p.Center.Sub(origin))
	}
	return out
}

// offsetBackbone shifts the axis backbone sideways for one bundle member.
// The first and last legs follow the member's own ports; inner legs sit
// rank*separation from the axis. Corners are the mitred intersections of
// neighbouring legs.
func offsetBackbone(name string, axis []node, start, end port.Port, startOff, endOff, rank, separation float64) ([]node, error) {
	n := len(axis)
	legOffset := func(j int) float64 {
		switch j {
		case 0:
			return startOff
		case n - 2:
			return endOff
		}
		sep := separation
		if s := axis[j+1].legSeparation; s != nil {
			sep = *s
		}
		return rank * sep
	}
	line := func(j int) (geometry.Point2D, geometry.Point2D) {
		d := geometry.Direction(axis[j].Out)
		p := axis[j].P.Add(d.Perp().Scale(legOffset(j)))
		return p, p.Add(d)
	}

	nodes := make([]node, n)
	copy(nodes, axis)
	nodes[0].P = start.Center
	nodes[n-1].P = end.Center
	for i := 1; i < n-1; i++ {
		a1, a2 := line(i - 1)
		b1, b2 := line(i)
		p, ok := geometry.LineIntersection(a1, a2, b1, b2)
		if !ok {
			if math.Abs(legOffset(i-1)-legOffset(i)) > geometry.Tolerance {
				return nil, newGeometryError(name, axis[i].Step,
					"separation changes on a straight corner; add an exit_angle to turn there")
			}
			p = axis[i].P.Add(geometry.Direction(axis[i].Out).Perp().Scale(legOffset(i)))
		}
		nodes[i].P = p
	}
	return nodes, nil
}
