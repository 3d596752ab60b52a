package geometry

// SimplifyPolyline reduces a polyline with the Douglas-Peucker algorithm,
// keeping every vertex that lies more than epsilon off the simplified path.
// The first and last points are always kept.
func SimplifyPolyline(path []Point2D, epsilon float64) []Point2D {
	if len(path) <= 2 {
		return path
	}

	dmax := 0.0
	index := 0
	end := len(path) - 1
	for i := 1; i < end; i++ {
		if d := PointToSegmentDistance(path[i], path[0], path[end]); d > dmax {
			dmax = d
			index = i
		}
	}

	if dmax <= epsilon {
		return []Point2D{path[0], path[end]}
	}

	left := SimplifyPolyline(path[:index+1], epsilon)
	right := SimplifyPolyline(path[index:], epsilon)

	result := make([]Point2D, 0, len(left)+len(right)-1)
	result = append(result, left[:len(left)-1]...)
	return append(result, right...)
}
