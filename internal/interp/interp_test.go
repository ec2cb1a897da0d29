package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/trajevent/internal/fault"
)

func load(it Interpolator, xs, ys []float64) {
	it.Clear()
	for i := range xs {
		it.AddPoint(xs[i], ys[i])
	}
}

func TestInterpolators_Linear(t *testing.T) {
	spline, err := NewSpline(5)
	require.NoError(t, err)

	for name, it := range map[string]Interpolator{
		"lagrange": NewLagrange(5),
		"spline":   spline,
	} {
		t.Run(name, func(t *testing.T) {
			// epoch = 2*value + 1, values supplied in descending order
			xs := []float64{9, 7, 5, 3, 1}
			ys := []float64{19, 15, 11, 7, 3}
			load(it, xs, ys)

			got, err := it.Interpolate(4)
			require.NoError(t, err)
			assert.InDelta(t, 9.0, got, 1e-9)
			assert.Equal(t, 5, it.BufferSize())
		})
	}
}

func TestLagrange_Quadratic(t *testing.T) {
	it := NewLagrange(3)
	load(it, []float64{0, 1, 2}, []float64{0, 1, 4})

	got, err := it.Interpolate(1.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.25, got, 1e-12)
}

func TestSpline_Smooth(t *testing.T) {
	it, err := NewSpline(7)
	require.NoError(t, err)

	var xs, ys []float64
	for i := 0; i < 7; i++ {
		x := float64(i) * 0.25
		xs = append(xs, x)
		ys = append(ys, math.Sin(x))
	}
	load(it, xs, ys)

	got, err := it.Interpolate(0.8)
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(0.8), got, 1e-3)
}

func TestInterpolate_Failures(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		x    float64
	}{
		{"too few points", []float64{1}, 1},
		{"duplicate values", []float64{1, 2, 2, 3}, 1.5},
		{"outside span", []float64{1, 2, 3}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewLagrange(len(tt.xs))
			load(it, tt.xs, tt.xs)
			_, err := it.Interpolate(tt.x)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.InterpolationFailure))
		})
	}
}

func TestNew(t *testing.T) {
	it, err := New("", 0)
	require.NoError(t, err)
	assert.IsType(t, &Lagrange{}, it)
	assert.Equal(t, DefaultBufferSize, it.BufferSize())

	it, err = New("spline", 4)
	require.NoError(t, err)
	assert.IsType(t, &Spline{}, it)

	_, err = New("spline", 2)
	assert.True(t, fault.Is(err, fault.InvalidRange))
	assert.False(t, fault.Is(err, fault.InterpolationFailure))

	it, err = New("lagrange", 1<<62)
	require.NoError(t, err)
	assert.Equal(t, MaxBufferSize, it.BufferSize())

	it, err = New("lagrange", 1)
	require.NoError(t, err)
	assert.Equal(t, MinBufferSize, it.BufferSize())

	_, err = New("hermite", 4)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	it := NewLagrange(2)
	load(it, []float64{0, 1}, []float64{0, 1})
	it.Clear()
	_, err := it.Interpolate(0.5)
	assert.True(t, fault.Is(err, fault.InterpolationFailure))
}

func TestCheckBufferSize(t *testing.T) {
	for _, n := range []int{0, MinBufferSize, DefaultBufferSize, MaxBufferSize} {
		assert.NoError(t, CheckBufferSize(n), "size %d", n)
	}
	for _, n := range []int{-1, 1, MaxBufferSize + 1, 100000, 1 << 62} {
		err := CheckBufferSize(n)
		require.Error(t, err, "size %d", n)
		assert.True(t, fault.Is(err, fault.InvalidRange), "size %d", n)
	}
}
