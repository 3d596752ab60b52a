package route

import (
	"errors"
	"math"

	"pic-router/pkg/geometry"
)

// maxClearanceSteps bounds the search for an indirect route.
const maxClearanceSteps = 400

// angleTolerance is the smallest turn, in degrees, that gets a bend.
const angleTolerance = 1e-9

var errNoFit = errors.New("no indirect route fits")

// handleFunc returns the handle of the bend for a signed turn.
type handleFunc func(turn float64) (float64, error)

// rayEnd is one end of a ray connection. At the start Heading is the travel
// direction; at the end it is the outward orientation, so travel arrives at
// Heading+180. Reserve is the handle already used by a bend sitting on P.
type rayEnd struct {
	P       geometry.Point2D
	Heading float64
	Reserve float64
}

// corner is a backbone vertex with the heading of the leg leaving it.
type corner struct {
	P   geometry.Point2D
	Out float64
}

// connectRays finds the corners joining ray a to ray b. sideHint (+1 or -1)
// picks the detour side when the end sits exactly on the start line.
func connectRays(a, b rayEnd, handle handleFunc, clearanceStep, sideHint float64) ([]corner, error) {
	da, db := geometry.Direction(a.Heading), geometry.Direction(b.Heading)
	arrival := geometry.NormalizeAngle(b.Heading + 180)
	d := b.P.Sub(a.P)

	// Collinear and facing.
	if math.Abs(da.Cross(d)) <= geometry.Tolerance && da.Dot(d) > geometry.Tolerance &&
		math.Abs(geometry.TurnAngle(a.Heading, arrival)) <= angleTolerance {
		return nil, nil
	}

	// Direct: the rays meet ahead of both ends. A corner whose handles do not
	// fit is kept as the answer of last resort.
	var direct []corner
	if t, u, ok := geometry.RayIntersection(a.P, da, b.P, db); ok && t > geometry.Tolerance && u > geometry.Tolerance {
		direct = []corner{{P: a.P.Add(da.Scale(t)), Out: arrival}}
		if fits(a, b, direct, handle) {
			return direct, nil
		}
	}

	if !reversesAtFirstClearance(a, b, da, db, clearanceStep) {
		if cs, ok := sShape(a, b, da, db, arrival, handle, clearanceStep); ok {
			return cs, nil
		}
	}

	side := math.Copysign(1, sideHint)
	if cross := da.Cross(d); math.Abs(cross) > geometry.Tolerance {
		side = math.Copysign(1, cross)
	}
	for _, s := range []float64{side, -side} {
		if cs, ok := detour(a, b, da, db, arrival, s, handle, clearanceStep); ok {
			return cs, nil
		}
	}
	if direct != nil {
		return direct, nil
	}
	return nil, errNoFit
}

func reversesAtFirstClearance(a, b rayEnd, da, db geometry.Point2D, step float64) bool {
	c1 := a.P.Add(da.Scale(step))
	c2 := b.P.Add(db.Scale(step))
	return c2.Sub(c1).Dot(da) < 0
}

// sShape joins the rays with two bends at equal clearance from each end,
// growing the clearance until the handles fit.
func sShape(a, b rayEnd, da, db geometry.Point2D, arrival float64, handle handleFunc, step float64) ([]corner, bool) {
	for k := 1; k <= maxClearanceSteps; k++ {
		c := float64(k) * step
		c1 := a.P.Add(da.Scale(c))
		c2 := b.P.Add(db.Scale(c))
		mid := c2.Sub(c1)
		if mid.Norm() <= geometry.Tolerance {
			continue
		}
		cs := []corner{{P: c1, Out: mid.Angle()}, {P: c2, Out: arrival}}
		if fits(a, b, cs, handle) {
			return cs, true
		}
	}
	return nil, false
}

// detour steps sideways with four bends and runs back or past the end along
// the start line before turning in. side is +1 for the left of the start
// heading. The middle leg runs backwards when the end lies behind the start
// and forwards, overshooting the end, when it lies ahead.
func detour(a, b rayEnd, da, db geometry.Point2D, arrival, side float64, handle handleFunc, step float64) ([]corner, bool) {
	n := da.Perp().Scale(side)
	for k := 1; k <= maxClearanceSteps; k++ {
		c := float64(k) * step
		c1 := a.P.Add(da.Scale(c))
		dp := b.P.Add(db.Scale(c))
		lateral := dp.Sub(a.P).Dot(n)
		level := math.Max(0, lateral) + c
		c2 := c1.Add(n.Scale(level))
		c3 := dp.Add(n.Scale(level - lateral))
		mid := c3.Sub(c2)
		if mid.Norm() <= geometry.Tolerance {
			continue
		}
		cs := []corner{
			{P: c1, Out: n.Angle()},
			{P: c2, Out: mid.Angle()},
			{P: c3, Out: n.Scale(-1).Angle()},
			{P: dp, Out: arrival},
		}
		if fits(a, b, cs, handle) {
			return cs, true
		}
	}
	return nil, false
}

// fits reports whether every bend along a -> corners -> b can be built, its
// handles fit on the legs next to it, and the path does not cross itself.
func fits(a, b rayEnd, cs []corner, handle handleFunc) bool {
	handles := make([]float64, len(cs))
	in := a.Heading
	for i, c := range cs {
		turn := geometry.TurnAngle(in, c.Out)
		if math.Abs(turn) > angleTolerance {
			h, err := handle(turn)
			if err != nil {
				return false
			}
			handles[i] = h
		}
		in = c.Out
	}

	prev, prevHandle := a.P, a.Reserve
	for i, c := range cs {
		if c.P.Distance(prev) < prevHandle+handles[i]-geometry.Tolerance {
			return false
		}
		prev, prevHandle = c.P, handles[i]
	}
	if b.P.Distance(prev) < prevHandle+b.Reserve-geometry.Tolerance {
		return false
	}

	path := make([]geometry.Point2D, 0, len(cs)+2)
	path = append(path, a.P)
	for _, c := range cs {
		path = append(path, c.P)
	}
	_, _, crossed := firstCrossing(append(path, b.P))
	return !crossed
}

// firstCrossing returns the first pair of non-adjacent legs of a polyline
// that cross.
func firstCrossing(pts []geometry.Point2D) (int, int, bool) {
	for i := 0; i < len(pts)-1; i++ {
		a1, a2 := pts[i], pts[i+1]
		if a1.Distance(a2) <= geometry.Tolerance {
			continue
		}
		for j := i + 2; j < len(pts)-1; j++ {
			b1, b2 := pts[j], pts[j+1]
			if b1.Distance(b2) <= geometry.Tolerance {
				continue
			}
			if geometry.SegmentsCross(a1, a2, b1, b2, geometry.Tolerance) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
