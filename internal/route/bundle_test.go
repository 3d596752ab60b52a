package route

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pic-router/internal/port"
	"pic-router/pkg/geometry"
)

func bundlePorts() ([]port.Port, []port.Port) {
	starts := []port.Port{
		port.New("s0", 0, 0, 0, 0.5),
		port.New("s1", 0, 5, 0, 0.5),
		port.New("s2", 0, 10, 0, 0.5),
	}
	ends := []port.Port{
		port.New("e0", 400, 190, 180, 0.5),
		port.New("e1", 400, 200, 180, 0.5),
		port.New("e2", 400, 210, 180, 0.5),
	}
	return starts, ends
}

func bundleSteps() []Step {
	return []Step{
		{X: Float(100), ExitAngle: Float(90)},
		{Y: Float(200), ExitAngle: Float(0)},
	}
}

func TestBundleKeepsSeparationAtCorners(t *testing.T) {
	starts, ends := bundlePorts()
	sep := 10.0

	routes, err := newTestRouter().Bundle(context.Background(), starts, ends, BundleOptions{
		Options:    Options{Name: "bus", Steps: bundleSteps()},
		Separation: &sep,
	})
	require.NoError(t, err)
	require.Len(t, routes, 3)

	for i, r := range routes {
		requireContinuous(t, r)
		assert.Equal(t, starts[i].Center, r.Segments[0].Start)
		require.Len(t, r.Corners(), 2, "route %d", i)
	}

	for i := 1; i < len(routes); i++ {
		for c := range routes[i].Corners() {
			d := routes[i].Corners()[c].Distance(routes[i-1].Corners()[c])
			assert.GreaterOrEqual(t, d, sep-geometry.Tolerance, "routes %d and %d at corner %d", i-1, i, c)
		}
	}

	// The vertical legs sit one separation apart, centred on the axis.
	assert.InDelta(t, 110, routes[0].Corners()[0].X, 1e-9)
	assert.InDelta(t, 100, routes[1].Corners()[0].X, 1e-9)
	assert.InDelta(t, 90, routes[2].Corners()[0].X, 1e-9)
}

func TestBundleStepSeparationOverride(t *testing.T) {
	starts, ends := bundlePorts()
	steps := bundleSteps()
	steps[1].Separation = Float(20)

	routes, err := newTestRouter().Bundle(context.Background(), starts, ends, BundleOptions{
		Options: Options{Name: "bus", Steps: steps},
	})
	require.NoError(t, err)

	assert.InDelta(t, 120, routes[0].Corners()[0].X, 1e-9)
	assert.InDelta(t, 80, routes[2].Corners()[0].X, 1e-9)
}

func TestBundleDefaultSeparationFromCrossSection(t *testing.T) {
	starts, ends := bundlePorts()
	routes, err := newTestRouter().Bundle(context.Background(), starts, ends, BundleOptions{
		Options: Options{Name: "bus", Steps: bundleSteps()},
	})
	require.NoError(t, err)

	// strip: 0.5 wide with 2 spacing
	assert.InDelta(t, 2.5, routes[0].Corners()[0].X-routes[1].Corners()[0].X, 1e-9)
}

func TestBundleParallelMatchesSequential(t *testing.T) {
	starts, ends := bundlePorts()
	opts := BundleOptions{Options: Options{Name: "bus", Steps: bundleSteps()}}

	par, err := newTestRouter().Bundle(context.Background(), starts, ends, opts)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Parallel = false
	seq, err := New(NewRegistry(), cfg, zerolog.Nop()).Bundle(context.Background(), starts, ends, opts)
	require.NoError(t, err)

	assert.True(t, cmp.Equal(par, seq), cmp.Diff(par, seq))
}

func TestBundleErrors(t *testing.T) {
	starts, ends := bundlePorts()
	rt := newTestRouter()

	t.Run("mismatched counts", func(t *testing.T) {
		_, err := rt.Bundle(context.Background(), starts, ends[:2], BundleOptions{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("crossed order", func(t *testing.T) {
		swapped := []port.Port{ends[2], ends[1], ends[0]}
		_, err := rt.Bundle(context.Background(), starts, swapped, BundleOptions{Options: Options{Steps: bundleSteps()}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "lateral order")
	})

	t.Run("mixed orientations", func(t *testing.T) {
		mixed := append([]port.Port{}, starts...)
		mixed[1] = mixed[1].WithOrientation(90)
		_, err := rt.Bundle(context.Background(), mixed, ends, BundleOptions{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := rt.Bundle(ctx, starts, ends, BundleOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBundlePitchBelowSeparationNeedsSteps(t *testing.T) {
	starts := []port.Port{
		port.New("s0", 0, 0, 0, 0.5),
		port.New("s1", 0, 1, 0, 0.5),
		port.New("s2", 0, 2, 0, 0.5),
	}
	ends := []port.Port{
		port.New("e0", 202, 200, 270, 0.5),
		port.New("e1", 201, 200, 270, 0.5),
		port.New("e2", 200, 200, 270, 0.5),
	}
	sep := 10.0
	rt := newTestRouter()

	_, err := rt.Bundle(context.Background(), starts, ends, BundleOptions{
		Options:    Options{Name: "bus"},
		Separation: &sep,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "below the separation")

	// Two step corners give the members room to spread out.
	routes, err := rt.Bundle(context.Background(), starts, ends, BundleOptions{
		Options: Options{Name: "bus", Steps: []Step{
			{X: Float(50), ExitAngle: Float(90)},
			{Y: Float(100), ExitAngle: Float(0)},
		}},
		Separation: &sep,
	})
	require.NoError(t, err)
	for i := 1; i < len(routes); i++ {
		for c := range routes[i].Corners()[:2] {
			d := routes[i].Corners()[c].Distance(routes[i-1].Corners()[c])
			assert.GreaterOrEqual(t, d, sep-geometry.Tolerance, "routes %d and %d at corner %d", i-1, i, c)
		}
	}
}

func TestBundleWithoutStepsKeepsPortPitch(t *testing.T) {
	starts := []port.Port{port.New("s0", 0, 0, 0, 0.5), port.New("s1", 0, 10, 0, 0.5)}
	ends := []port.Port{port.New("e0", 300, 0, 180, 0.5), port.New("e1", 300, 10, 180, 0.5)}

	routes, err := newTestRouter().Bundle(context.Background(), starts, ends, BundleOptions{
		Options: Options{Name: "bus"},
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	for _, r := range routes {
		requireContinuous(t, r)
		assert.InDelta(t, 300, r.Length(), 1e-9)
	}
}

func TestBundleOfOne(t *testing.T) {
	starts, ends := bundlePorts()
	routes, err := newTestRouter().Bundle(context.Background(), starts[:1], ends[:1],
		BundleOptions{Options: Options{Steps: bundleSteps()}})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	requireContinuous(t, routes[0])
}
