package route

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pic-router/internal/component"
	"pic-router/internal/connector"
	"pic-router/internal/port"
	"pic-router/internal/segment"
	"pic-router/internal/xsection"
	"pic-router/pkg/geometry"
)

func newTestRouter() *Router {
	return New(NewRegistry(), DefaultConfig(), zerolog.Nop())
}

func requireContinuous(t *testing.T, r *Route) {
	t.Helper()
	require.NoError(t, r.CheckContinuity(geometry.Tolerance))
	assert.Equal(t, r.Start.Center, r.Segments[0].Start, "first segment must start on the start port")
	assert.Equal(t, r.End.Center, r.Segments[len(r.Segments)-1].End, "last segment must end on the end port")
	for i, s := range r.Segments {
		assert.GreaterOrEqual(t, s.Length, 0.0, "segment %d", i)
	}
}

func countKind(r *Route, kind segment.Kind) int {
	n := 0
	for _, s := range r.Segments {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestDirectRouteCornerAtRayIntersection(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 10, 10, 270, 0.5)

	r, err := rt.Route(start, end, Options{Bend: component.Circular})
	require.NoError(t, err)
	requireContinuous(t, r)

	require.Len(t, r.Corners(), 1)
	assert.True(t, r.Corners()[0].Equal(geometry.Point2D{X: 10}, 1e-9))

	// R = 10 and a 90 degree turn leave no room for straights.
	require.Len(t, r.Segments, 1)
	assert.Equal(t, segment.KindBend, r.Segments[0].Kind)
	assert.InDelta(t, 5*math.Pi, r.Length(), 1e-9)
}

func TestDirectRouteLengthsAddUp(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 30, 40, 270, 0.5)

	r, err := rt.Route(start, end, Options{Bend: component.Circular})
	require.NoError(t, err)
	requireContinuous(t, r)

	require.Len(t, r.Segments, 3)
	assert.InDelta(t, 20, r.Segments[0].Length, 1e-9)
	assert.InDelta(t, 30, r.Segments[2].Length, 1e-9)
	assert.InDelta(t, 50+5*math.Pi, r.Length(), 1e-9)
	assert.InDelta(t, r.Length(), r.Info.Length, 1e-12)
	assert.InDelta(t, 1, r.Info.NBend90, 1e-12)
}

func TestCollinearPortsGiveOneStraight(t *testing.T) {
	r, err := newTestRouter().Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 50, 0, 180, 0.5), Options{})
	require.NoError(t, err)
	requireContinuous(t, r)
	require.Len(t, r.Segments, 1)
	assert.Equal(t, segment.KindStraight, r.Segments[0].Kind)
	assert.InDelta(t, 50, r.Length(), 1e-12)
}

func TestIndirectSShape(t *testing.T) {
	r, err := newTestRouter().Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 100, 30, 180, 0.5), Options{})
	require.NoError(t, err)
	requireContinuous(t, r)

	require.Equal(t, 2, countKind(r, segment.KindBend))
	var turns []float64
	for _, s := range r.Segments {
		if s.Kind == segment.KindBend {
			turns = append(turns, s.Angle)
		}
	}
	assert.Greater(t, turns[0], 0.0)
	assert.InDelta(t, -turns[0], turns[1], 1e-9)
	assert.Equal(t, 0.0, r.Segments[len(r.Segments)-1].EndAngle)
}

func TestAroundTheBack(t *testing.T) {
	// The end sits straight behind the start and is entered travelling +x.
	r, err := newTestRouter().Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", -50, 0, 180, 0.5), Options{})
	require.NoError(t, err)
	requireContinuous(t, r)

	require.Len(t, r.Corners(), 4)
	for _, c := range r.Corners() {
		assert.GreaterOrEqual(t, c.Y, 0.0, "ties detour counter-clockwise")
	}
	assert.InDelta(t, 4, r.Info.NBend90, 1e-9)
}

func TestConnectRaysSideHint(t *testing.T) {
	handle := func(turn float64) (float64, error) {
		g, err := component.CircularBend{}.Build(turn, 10)
		return g.Handle, err
	}
	a := rayEnd{P: geometry.Point2D{}, Heading: 0}
	b := rayEnd{P: geometry.Point2D{X: -50}, Heading: 180}

	cs, err := connectRays(a, b, handle, 2.5, -1)
	require.NoError(t, err)
	require.Len(t, cs, 4)
	for _, c := range cs {
		assert.LessOrEqual(t, c.P.Y, 0.0)
	}
}

func TestLoopPastEndAhead(t *testing.T) {
	// The end faces away from the start, so the route overshoots it and
	// comes back travelling -x.
	for _, dy := range []float64{0, 1, 3, 5} {
		t.Run(fmt.Sprintf("dy=%g", dy), func(t *testing.T) {
			r, err := newTestRouter().Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 100, dy, 0, 0.5), Options{})
			require.NoError(t, err)
			requireContinuous(t, r)

			require.Len(t, r.Corners(), 4)
			maxX := 0.0
			for _, c := range r.Corners() {
				assert.GreaterOrEqual(t, c.Y, 0.0)
				maxX = math.Max(maxX, c.X)
			}
			assert.Greater(t, maxX, 100.0)
			assert.InDelta(t, 4, r.Info.NBend90, 1e-9)
			assert.Equal(t, 180.0, r.Segments[len(r.Segments)-1].EndAngle)
		})
	}
}

func TestTightDirectCornerFallsBackToIndirect(t *testing.T) {
	tests := []struct {
		name string
		end  port.Port
	}{
		{"short end leg", port.New("o2", 100, 3, 270, 0.5)},
		{"oblique", port.New("o2", 50, -3, 45, 0.5)},
		{"short end leg below", port.New("o2", 100, -3, 90, 0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newTestRouter().Route(port.New("o1", 0, 0, 0, 0.5), tt.end, Options{})
			require.NoError(t, err)
			requireContinuous(t, r)
			assert.Greater(t, len(r.Corners()), 1)
		})
	}
}

func TestStartAndEndStraights(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 100, 0, 0, 0.5)

	plain, err := rt.Route(start, end, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 20, plain.Corners()[0].X, 1e-9)

	r, err := rt.Route(start, end, Options{StartStraight: 30, EndStraight: 30})
	require.NoError(t, err)
	requireContinuous(t, r)

	first, last := r.Segments[0], r.Segments[len(r.Segments)-1]
	assert.Equal(t, segment.KindStraight, first.Kind)
	assert.Equal(t, segment.KindStraight, last.Kind)
	assert.GreaterOrEqual(t, first.Length, 30-1e-9)
	assert.GreaterOrEqual(t, last.Length, 30-1e-9)
}

func TestStartStraightTooLongForFirstStep(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 20, 100, 270, 0.5)
	steps := []Step{{X: Float(20), ExitAngle: Float(90)}}

	_, err := rt.Route(start, end, Options{Steps: steps, Bend: component.Circular})
	require.NoError(t, err)

	_, err = rt.Route(start, end, Options{Steps: steps, Bend: component.Circular, StartStraight: 15})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeometry)
	assert.Equal(t, 0, StepIndex(err))
	assert.Contains(t, err.Error(), "end straights need")
}

func TestWaypoints(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 150, 180, 0.5)

	r, err := rt.Route(start, end, Options{Waypoints: []geometry.Point2D{{X: 50}, {X: 100, Y: 150}}})
	require.NoError(t, err)
	requireContinuous(t, r)

	want := []geometry.Point2D{{X: 50}, {X: 100, Y: 150}}
	require.Len(t, r.Corners(), len(want))
	for i, c := range r.Corners() {
		assert.True(t, c.Equal(want[i], 1e-9), "corner %d at %v", i, c)
	}
	assert.Equal(t, 0.0, r.Segments[len(r.Segments)-1].EndAngle)
}

func TestWaypointErrors(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 150, 180, 0.5)

	t.Run("first waypoint off the start heading", func(t *testing.T) {
		_, err := rt.Route(start, end, Options{Waypoints: []geometry.Point2D{{X: 50, Y: 10}}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 0, StepIndex(err))
	})

	t.Run("mixed with steps", func(t *testing.T) {
		_, err := rt.Route(start, end, Options{
			Waypoints: []geometry.Point2D{{X: 50}},
			Steps:     []Step{{DX: Float(10)}},
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("negative straight", func(t *testing.T) {
		_, err := rt.Route(start, end, Options{StartStraight: -1})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestStartAngle(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 100, 100, 180, 0.5)

	r, err := newTestRouter().Route(start, end, Options{Bend: component.Circular, StartAngle: Float(90)})
	require.NoError(t, err)
	requireContinuous(t, r)

	first := r.Segments[0]
	assert.Equal(t, segment.KindBend, first.Kind)
	assert.InDelta(t, 90, first.Angle, 1e-12)
	require.Len(t, r.Corners(), 2)
	assert.True(t, r.Corners()[1].Equal(geometry.Point2D{X: 10, Y: 100}, 1e-9))
}

func TestEndAngle(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 100, 50, 90, 0.5)

	r, err := newTestRouter().Route(start, end, Options{EndAngle: Float(180)})
	require.NoError(t, err)
	requireContinuous(t, r)

	last := r.Segments[len(r.Segments)-1]
	assert.Equal(t, segment.KindBend, last.Kind)
	assert.InDelta(t, -90, last.Angle, 1e-12)
	assert.Equal(t, end.Center, last.End)
}

func TestStepsXPlusDSWithoutIncomingAngle(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 300, 270, 0.5)
	steps := []Step{
		{X: Float(50)},
		{X: Float(100), DS: Float(50 * math.Sqrt2)},
	}

	r, err := newTestRouter().Route(start, end, Options{Steps: steps})
	require.NoError(t, err)
	requireContinuous(t, r)

	corners := r.Corners()
	require.Len(t, corners, 3)
	assert.True(t, corners[0].Equal(geometry.Point2D{X: 50}, 1e-9))
	assert.True(t, corners[1].Equal(geometry.Point2D{X: 100, Y: 50}, 1e-9), "ties pick the counter-clockwise solution")
	assert.True(t, corners[2].Equal(geometry.Point2D{X: 200, Y: 150}, 1e-9))
}

func TestStepsXPlusDSRejectedAfterExitAngle(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 300, 270, 0.5)
	steps := []Step{
		{X: Float(50), ExitAngle: Float(0)},
		{X: Float(100), DS: Float(60)},
	}

	_, err := newTestRouter().Route(start, end, Options{Name: "r1", Steps: steps})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 1, StepIndex(err))
	assert.Contains(t, err.Error(), "route r1")
}

func TestStepValidation(t *testing.T) {
	tests := []struct {
		name   string
		steps  []Step
		step   int
		errMsg string
	}{
		{name: "underconstrained", steps: []Step{{ExitAngle: Float(90)}}, step: 0, errMsg: "underconstrained"},
		{name: "two constraints on fixed start", steps: []Step{{X: Float(10), Y: Float(10)}}, step: 0, errMsg: "start port"},
		{name: "x and dx", steps: []Step{{X: Float(10)}, {X: Float(20), DX: Float(5)}}, step: 1, errMsg: "x and dx"},
		{name: "three constraints", steps: []Step{{X: Float(10)}, {X: Float(20), Y: Float(5), DS: Float(4)}}, step: 1, errMsg: "overconstrained"},
		{name: "non-positive ds", steps: []Step{{DS: Float(0)}}, step: 0, errMsg: "ds must be positive"},
		{name: "nan", steps: []Step{{X: Float(math.NaN())}}, step: 0, errMsg: "finite"},
		{name: "negative separation", steps: []Step{{X: Float(10), Separation: Float(-1)}}, step: 0, errMsg: "separation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSteps("r", tt.steps)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, tt.step, StepIndex(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStepResolutionErrors(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 500, 500, 270, 0.5)

	tests := []struct {
		name   string
		steps  []Step
		step   int
		errMsg string
	}{
		{name: "x behind", steps: []Step{{X: Float(-10)}}, step: 0, errMsg: "does not move forward"},
		{name: "x unreachable", steps: []Step{{X: Float(50), ExitAngle: Float(90)}, {X: Float(80)}}, step: 1, errMsg: "cannot be reached"},
		{name: "ds too short", steps: []Step{{X: Float(50)}, {DX: Float(40), DS: Float(30)}}, step: 1, errMsg: "unsatisfiable"},
		{name: "coincident corner", steps: []Step{{X: Float(50)}, {DX: Float(0), DY: Float(0)}}, step: 1, errMsg: "coincides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRouter().Route(start, end, Options{Steps: tt.steps})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.step, StepIndex(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigurationErrors(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 100, 100, 270, 0.5)

	tests := []struct {
		name string
		opts Options
		kind string
	}{
		{name: "bend", opts: Options{Bend: "spiral"}, kind: "bend"},
		{name: "connector", opts: Options{Connector: "teleport"}, kind: "connector"},
		{name: "cross-section", opts: Options{CrossSection: "unobtainium"}, kind: "cross-section"},
		{name: "step cross-section", opts: Options{Steps: []Step{{X: Float(10), CrossSection: "nope"}}}, kind: "cross-section"},
		{name: "step connector", opts: Options{Steps: []Step{{X: Float(10), Connector: "nope"}}}, kind: "connector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRouter().Route(start, end, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
		})
	}
}

func TestGeometryErrors(t *testing.T) {
	rt := newTestRouter()

	t.Run("handles do not fit", func(t *testing.T) {
		_, err := rt.Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 5, 5, 270, 0.5), Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeometry)
		assert.Contains(t, err.Error(), "handles do not fit")
	})

	t.Run("reversal", func(t *testing.T) {
		_, err := rt.Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 100, 100, 270, 0.5),
			Options{StartAngle: Float(180)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeometry)
		assert.ErrorIs(t, err, component.ErrReversal)
	})

	t.Run("coincident ports", func(t *testing.T) {
		_, err := rt.Route(port.New("o1", 3, 3, 0, 0.5), port.New("o2", 3, 3, 180, 0.5), Options{})
		assert.True(t, IsGeometryError(err))
	})

	t.Run("self intersection", func(t *testing.T) {
		steps := []Step{
			{X: Float(100), ExitAngle: Float(90)},
			{DY: Float(100), ExitAngle: Float(180)},
			{DX: Float(-50), ExitAngle: Float(270)},
			{Y: Float(-50), ExitAngle: Float(0)},
		}
		_, err := rt.Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 300, -50, 180, 0.5), Options{Steps: steps})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeometry)
		assert.Contains(t, err.Error(), "crosses itself")
	})
}

func TestPortValidation(t *testing.T) {
	_, err := newTestRouter().Route(port.New("o1", 0, 0, 0, -1), port.New("o2", 50, 0, 180, 0.5), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, -1, StepIndex(err))
}

func TestIdempotent(t *testing.T) {
	rt := newTestRouter()
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 300, 270, 0.5)
	opts := Options{Steps: []Step{{X: Float(50)}, {X: Float(100), DS: Float(50 * math.Sqrt2)}}}

	a, err := rt.Route(start, end, opts)
	require.NoError(t, err)
	b, err := rt.Route(start, end, opts)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(a, b), cmp.Diff(a, b))
}

func TestMetalRouteUsesWireCorners(t *testing.T) {
	start := port.New("e1", 0, 0, 0, 10)
	end := port.New("e2", 100, 80, 270, 10)

	r, err := newTestRouter().Route(start, end, Options{CrossSection: xsection.MetalRouting})
	require.NoError(t, err)
	requireContinuous(t, r)

	assert.InDelta(t, geometry.PolylineLength(r.Backbone), r.Length(), 1e-9)
	for _, s := range r.Segments {
		if s.Kind == segment.KindBend {
			assert.Equal(t, component.WireCorner, s.Component)
		}
	}
}

func TestConnectorDispatch(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 300, 270, 0.5)
	steps := []Step{{X: Float(100), ExitAngle: Float(90), Connector: connector.LowLoss}}

	r, err := newTestRouter().Route(start, end, Options{Steps: steps, Connector: connector.Straight})
	require.NoError(t, err)
	requireContinuous(t, r)

	var sources []string
	for _, s := range r.Segments {
		if s.Kind != segment.KindBend {
			sources = append(sources, s.Source)
		}
	}
	// The first leg is long enough to widen.
	require.Greater(t, len(sources), 3)
	assert.Equal(t, []string{connector.LowLoss, connector.LowLoss, connector.LowLoss}, sources[:3])
	for _, s := range sources[3:] {
		assert.Equal(t, connector.Straight, s)
	}
	assert.Equal(t, 2, r.Info.NTapers)
}

func TestStepCrossSectionOverride(t *testing.T) {
	start := port.New("o1", 0, 0, 0, 0.5)
	end := port.New("o2", 200, 300, 270, 0.5)
	steps := []Step{{X: Float(100), ExitAngle: Float(90), CrossSection: xsection.Nitride}}

	r, err := newTestRouter().Route(start, end, Options{Steps: steps, Connector: connector.AutoTaper})
	require.NoError(t, err)
	requireContinuous(t, r)

	assert.Equal(t, xsection.Nitride, r.Segments[0].CrossSection)
	assert.Contains(t, r.Info.LengthByCrossSection, xsection.Nitride)
	assert.Contains(t, r.Info.LengthByCrossSection, xsection.Strip)
}

func TestLossScalesWithLength(t *testing.T) {
	rt := newTestRouter()
	short, err := rt.Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 1000, 0, 180, 0.5), Options{})
	require.NoError(t, err)
	long, err := rt.Route(port.New("o1", 0, 0, 0, 0.5), port.New("o2", 2000, 0, 180, 0.5), Options{})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, short.Info.LossDB, 1e-9)
	assert.InDelta(t, 2*short.Info.LossDB, long.Info.LossDB, 1e-9)
}
