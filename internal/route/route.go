// Package route computes all-angle waveguide routes between ports.
package route

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"pic-router/internal/port"
	"pic-router/internal/segment"
	"pic-router/pkg/geometry"
)

// headingTolerance is the allowed heading mismatch at a joint, in degrees.
const headingTolerance = 1e-6

// Route is a computed route. It is not modified after the router returns it.
type Route struct {
	Name         string             `json:"name"`
	Start        port.Port          `json:"start"`
	End          port.Port          `json:"end"`
	CrossSection string             `json:"cross_section"`
	Segments     []segment.Segment  `json:"segments"`
	Backbone     []geometry.Point2D `json:"backbone"` // start, corners, end
	Info         Info               `json:"info"`
}

// Length returns the total physical length of the route.
func (r *Route) Length() float64 {
	lengths := make([]float64, len(r.Segments))
	for i, s := range r.Segments {
		lengths[i] = s.Length
	}
	return floats.Sum(lengths)
}

// Corners returns the backbone vertices between the ports.
func (r *Route) Corners() []geometry.Point2D {
	if len(r.Backbone) < 2 {
		return nil
	}
	return r.Backbone[1 : len(r.Backbone)-1]
}

// Centerline returns the sampled centerline of the whole route.
func (r *Route) Centerline() []geometry.Point2D {
	var pts []geometry.Point2D
	for _, s := range r.Segments {
		for _, p := range s.Points {
			if n := len(pts); n > 0 && pts[n-1].Equal(p, geometry.Tolerance) {
				continue
			}
			pts = append(pts, p)
		}
	}
	return pts
}

// CheckContinuity verifies that every segment starts where the previous one
// ended, with the same heading, and that the ends land on the ports.
func (r *Route) CheckContinuity(tol float64) error {
	if len(r.Segments) == 0 {
		return fmt.Errorf("route has no segments")
	}
	if first := r.Segments[0]; !first.Start.Equal(r.Start.Center, tol) {
		return fmt.Errorf("first segment starts at %v, not at port %s", first.Start, r.Start.Name)
	}
	if last := r.Segments[len(r.Segments)-1]; !last.End.Equal(r.End.Center, tol) {
		return fmt.Errorf("last segment ends at %v, not at port %s", last.End, r.End.Name)
	}
	for i := 1; i < len(r.Segments); i++ {
		prev, cur := r.Segments[i-1], r.Segments[i]
		if !prev.End.Equal(cur.Start, tol) {
			return fmt.Errorf("gap between segment %d and %d: %v != %v", i-1, i, prev.End, cur.Start)
		}
		if math.Abs(geometry.TurnAngle(prev.EndAngle, cur.StartAngle)) > headingTolerance {
			return fmt.Errorf("heading jump between segment %d and %d: %g != %g", i-1, i, prev.EndAngle, cur.StartAngle)
		}
	}
	return nil
}

// LossModel estimates insertion loss from route geometry.
type LossModel struct {
	BendDB90           float64            `json:"bend_db_90" mapstructure:"bend_db_90"` // loss per 90 degree bend
	TaperDB            float64            `json:"taper_db" mapstructure:"taper_db"`     // loss per taper
	PropagationDBPerCm map[string]float64 `json:"propagation_db_per_cm" mapstructure:"propagation_db_per_cm"`
}

// Info summarises a route.
type Info struct {
	Length               float64            `json:"length"`
	NBend90              float64            `json:"n_bend_90"`
	NBends               int                `json:"n_bends"`
	NStraights           int                `json:"n_straights"`
	NTapers              int                `json:"n_tapers"`
	LengthByCrossSection map[string]float64 `json:"length_by_cross_section"`
	LossDB               float64            `json:"loss_db"`
}

// ComputeInfo summarises segments under a loss model.
func ComputeInfo(segs []segment.Segment, m LossModel) Info {
	info := Info{LengthByCrossSection: make(map[string]float64)}
	lengths := make([]float64, len(segs))
	for i, s := range segs {
		lengths[i] = s.Length
		info.LengthByCrossSection[s.CrossSection] += s.Length
		switch s.Kind {
		case segment.KindBend:
			info.NBends++
			info.NBend90 += math.Abs(s.Angle) / 90
		case segment.KindTaper:
			info.NTapers++
		case segment.KindStraight:
			info.NStraights++
		}
	}
	info.Length = floats.Sum(lengths)

	info.LossDB = info.NBend90*m.BendDB90 + float64(info.NTapers)*m.TaperDB
	names := make([]string, 0, len(info.LengthByCrossSection))
	for xs := range info.LengthByCrossSection {
		names = append(names, xs)
	}
	sort.Strings(names)
	for _, xs := range names {
		info.LossDB += m.PropagationDBPerCm[xs] * info.LengthByCrossSection[xs] * 1e-4 // µm to cm
	}
	return info
}
