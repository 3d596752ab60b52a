package component

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pic-router/pkg/geometry"
)

func TestCircularBend(t *testing.T) {
	g, err := CircularBend{}.Build(90, 10)
	require.NoError(t, err)

	assert.InDelta(t, 10, g.Handle, 1e-9)
	assert.InDelta(t, 5*math.Pi, g.Length, 1e-9)
	assert.True(t, g.End.Equal(geometry.Point2D{X: 10, Y: 10}, 1e-9))
	assert.Equal(t, geometry.Point2D{}, g.Points[0])
	assert.Equal(t, g.End, g.Points[len(g.Points)-1])
	assert.InDelta(t, 1, g.NBend90(), 1e-12)

	neg, err := CircularBend{}.Build(-90, 10)
	require.NoError(t, err)
	assert.True(t, neg.End.Equal(geometry.Point2D{X: 10, Y: -10}, 1e-9))
}

func TestCircularBendEndIsOnTangentFromCorner(t *testing.T) {
	for _, angle := range []float64{15, 45, 120, -60, 179} {
		g, err := CircularBend{}.Build(angle, 5)
		require.NoError(t, err)

		corner := geometry.Point2D{X: g.Handle}
		want := corner.Add(geometry.Direction(angle).Scale(g.Handle))
		assert.True(t, g.End.Equal(want, 1e-9), "angle %v: end %v want %v", angle, g.End, want)
	}
}

func TestBendRejectsReversal(t *testing.T) {
	lib := NewLibrary()
	for _, name := range lib.List() {
		_, err := lib.Build(name, 180, 10)
		assert.ErrorIs(t, err, ErrReversal, name)
		_, err = lib.Build(name, -200, 10)
		assert.ErrorIs(t, err, ErrReversal, name)
	}
}

func TestEulerMatchesCircularFloorplan(t *testing.T) {
	for _, angle := range []float64{30, 90, -90, 150} {
		c, err := CircularBend{}.Build(angle, 10)
		require.NoError(t, err)
		e, err := NewEulerBend(DefaultEulerP).Build(angle, 10)
		require.NoError(t, err)

		assert.InDelta(t, c.Handle, e.Handle, 1e-9)
		assert.True(t, e.End.Equal(c.End, 1e-9))
		assert.Less(t, e.RadiusMin, 10.0, "euler bends tighten below the effective radius")
		assert.Greater(t, e.Length, c.Length, "euler bends are longer than the arc")
	}
}

func TestEulerEndHeading(t *testing.T) {
	e, err := NewEulerBend(DefaultEulerP).Build(90, 10)
	require.NoError(t, err)

	n := len(e.Points)
	last := e.Points[n-1].Sub(e.Points[n-2])
	assert.InDelta(t, 90, last.Angle(), 1.0)

	first := e.Points[1].Sub(e.Points[0])
	assert.InDelta(t, 0, first.Angle(), 1.0)
}

func TestEulerMinRadiusMode(t *testing.T) {
	e, err := EulerBend{P: 1}.Build(90, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10, e.RadiusMin, 1e-9)
	assert.Greater(t, e.Radius, 10.0)
}

func TestEulerRejectsBadP(t *testing.T) {
	_, err := EulerBend{P: 1.5}.Build(90, 10)
	require.Error(t, err)
}

func TestWireCorner(t *testing.T) {
	g, err := WireCornerBend{}.Build(90, 0)
	require.NoError(t, err)
	assert.Zero(t, g.Handle)
	assert.Zero(t, g.Length)
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	assert.Equal(t, []string{Circular, Euler, WireCorner}, lib.List())

	lib.AddAs("euler_full", EulerBend{P: 1, ArcFloorplan: true})
	assert.NotNil(t, lib.Get("euler_full"))
	assert.Equal(t, []string{Circular, Euler, "euler_full", WireCorner}, lib.List())

	_, err := lib.Build("nope", 90, 10)
	assert.Error(t, err)
}
