package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// parallelTolerance is the |cross| below which two unit directions count as parallel.
const parallelTolerance = 1e-10

// RayIntersection intersects the ray p + t*dp with the ray q + u*dq.
// It returns the ray parameters of the meeting point; ok is false when the
// directions are parallel. Negative parameters mean the lines meet behind
// the corresponding origin.
func RayIntersection(p, dp, q, dq Point2D) (t, u float64, ok bool) {
	if math.Abs(dp.Cross(dq)) < parallelTolerance*dp.Norm()*dq.Norm() {
		return 0, 0, false
	}

	// Solve [dp -dq] * [t u]^T = q - p
	A := mat.NewDense(2, 2, []float64{
		dp.X, -dq.X,
		dp.Y, -dq.Y,
	})
	rhs := q.Sub(p)
	b := mat.NewVecDense(2, []float64{rhs.X, rhs.Y})

	var params mat.VecDense
	if err := params.SolveVec(A, b); err != nil {
		return 0, 0, false
	}
	return params.AtVec(0), params.AtVec(1), true
}

// LineIntersection computes the intersection point of the infinite line
// through p1-p2 with the infinite line through e1-e2.
// Returns the point and true if the lines are not parallel.
func LineIntersection(p1, p2, e1, e2 Point2D) (Point2D, bool) {
	x1, y1 := p1.X, p1.Y
	x2, y2 := p2.X, p2.Y
	x3, y3 := e1.X, e1.Y
	x4, y4 := e2.X, e2.Y

	denom := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(denom) < 1e-10 {
		// Lines are parallel
		return Point2D{}, false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / denom

	return Point2D{
		X: x1 + t*(x2-x1),
		Y: y1 + t*(y2-y1),
	}, true
}

// SegmentsCross reports whether segments a1-a2 and b1-b2 properly cross,
// i.e. intersect at a single point interior to both. Touching endpoints and
// collinear overlaps are not reported.
func SegmentsCross(a1, a2, b1, b2 Point2D, tol float64) bool {
	d1 := crossProduct(b1, b2, a1)
	d2 := crossProduct(b1, b2, a2)
	d3 := crossProduct(a1, a2, b1)
	d4 := crossProduct(a1, a2, b2)

	return ((d1 > tol && d2 < -tol) || (d1 < -tol && d2 > tol)) &&
		((d3 > tol && d4 < -tol) || (d3 < -tol && d4 > tol))
}

// PointToSegmentDistance calculates the minimum distance from p to segment a-b.
func PointToSegmentDistance(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx == 0 && dy == 0 {
		// Segment is a point
		return p.Distance(a)
	}

	// Parameter t of closest point on infinite line
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)

	// Clamp to segment
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return p.Distance(Point2D{X: a.X + t*dx, Y: a.Y + t*dy})
}

// PolylineLength sums the lengths of consecutive point pairs.
func PolylineLength(points []Point2D) float64 {
	var sum float64
	for i := 1; i < len(points); i++ {
		sum += points[i].Distance(points[i-1])
	}
	return sum
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
