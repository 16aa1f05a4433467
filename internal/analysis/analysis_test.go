package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(w, h int, values ...float64) *Grid {
	return &Grid{Width: w, Height: h, Data: values}
}

func TestNDVI(t *testing.T) {
	bands := Bands{
		Red:      grid(2, 2, 0.1, 0.3, 0, 0.2),
		NIR:      grid(2, 2, 0.5, 0.3, 0, 0.6),
		DataMask: grid(2, 2, 1, 1, 1, 0),
	}

	ndvi, err := NDVI(bands)
	require.NoError(t, err)
	assert.InDelta(t, 0.4/0.6, ndvi.At(0, 0), 1e-9)
	assert.Equal(t, 0.0, ndvi.At(1, 0))
	assert.Equal(t, 0.0, ndvi.At(0, 1), "zero denominator")
	assert.True(t, math.IsNaN(ndvi.At(1, 1)), "outside data mask")
}

func TestNDVI_ShapeMismatch(t *testing.T) {
	_, err := NDVI(Bands{Red: grid(1, 1, 0), NIR: grid(2, 1, 0, 0)})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestVegetationArea(t *testing.T) {
	ndvi := grid(3, 1, 0.2, 0.19, math.NaN())
	assert.Equal(t, 1, VegetationPixels(ndvi))
	assert.Equal(t, 100.0, VegetationArea(ndvi, 100))
}

func TestAreaChange(t *testing.T) {
	first := grid(2, 2, 0.5, 0.5, 0.5, 0.1)
	latest := grid(2, 2, 0.5, 0.1, 0.1, 0.6)

	change, err := AreaChange(first, latest, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, change)

	_, err = AreaChange(first, grid(1, 1, 0), 100)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestChangeGrid(t *testing.T) {
	first := grid(4, 1, 0.5, 0.1, 0.5, math.NaN())
	latest := grid(4, 1, 0.5, 0.5, 0.1, 0.3)

	change, err := ChangeGrid(first, latest)
	require.NoError(t, err)
	assert.Equal(t, []float64{Stable, Growth, Decline, Growth}, change.Data)
	assert.Equal(t, ChangeSummary{Growth: 2, Decline: 1}, Summarize(change))
}
