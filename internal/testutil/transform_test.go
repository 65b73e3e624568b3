package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprojcheck/internal/crs"
)

var (
	src = crs.MustParse("EPSG:4326")
	dst = crs.MustParse("EPSG:32631")
)

func TestCountingFactory(t *testing.T) {
	f := &CountingFactory{}
	for i := 0; i < 3; i++ {
		tr, err := f.New(src, dst)
		require.NoError(t, err)
		require.NoError(t, tr.Close())
	}
	assert.Equal(t, int64(3), f.Count())
}

func TestFailingFactory(t *testing.T) {
	f := &FailingFactory{Allow: 1}

	tr, err := f.New(src, dst)
	require.NoError(t, err)
	tr.Close()

	_, err = f.New(src, dst)
	assert.ErrorIs(t, err, ErrInjected)
}

func TestDriftingFactory_DriftsFromThreshold(t *testing.T) {
	f := &DriftingFactory{DriftAt: 2}
	tr, err := f.New(src, dst)
	require.NoError(t, err)
	defer tr.Close()

	x1, y1 := []float64{2, 2.5}, []float64{49, 49.5}
	require.NoError(t, tr.Transform(x1, y1))

	x2, y2 := []float64{2, 2.5}, []float64{49, 49.5}
	require.NoError(t, tr.Transform(x2, y2))

	assert.Equal(t, x1, x2)
	assert.Equal(t, y1[0], y2[0])
	assert.Equal(t, math.Nextafter(y1[1], math.Inf(1)), y2[1])
	assert.Equal(t, int64(2), f.Calls())
}

func TestErroringFactory(t *testing.T) {
	f := &ErroringFactory{FailAt: 2}
	tr, err := f.New(src, dst)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Transform([]float64{2}, []float64{49}))
	assert.ErrorIs(t, tr.Transform([]float64{2}, []float64{49}), ErrInjected)
}
