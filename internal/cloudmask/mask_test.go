package cloudmask

import (
	"context"
	"testing"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneWithQA(t *testing.T, qa []float64, qaValid []bool) *raster.Image {
	t.Helper()
	grid := raster.Grid{Width: len(qa), Height: 1, Transform: raster.GeoTransform{0, 1, 0, 1, 0, -1}}
	red := make([]float64, len(qa))
	for i := range red {
		red[i] = float64(100 * (i + 1))
	}
	img, err := raster.NewImage(raster.Metadata{ID: "scene"}, grid,
		raster.NewBand("B4", red, nil),
		raster.NewBand(DefaultQABand, qa, qaValid))
	require.NoError(t, err)
	return img
}

func TestMask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		qa   float64
		keep bool
	}{
		{name: "clear", qa: 322, keep: true},
		{name: "water", qa: 324, keep: false},
		{name: "clear with high confidence cloud bit", qa: 322 | 1<<9, keep: false},
		{name: "cloud shadow", qa: 328, keep: false},
		{name: "fill", qa: 1, keep: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			masked, err := Mask(sceneWithQA(t, []float64{tt.qa}, nil), DefaultQABand, ClearCode)
			require.NoError(t, err)
			for _, band := range masked.Bands() {
				assert.Equal(t, tt.keep, band.Valid(0), "band %s", band.Name)
			}
		})
	}
}

func TestMaskKeepsValues(t *testing.T) {
	t.Parallel()

	img := sceneWithQA(t, []float64{322, 324, 322}, nil)
	masked, err := Mask(img, DefaultQABand, ClearCode)
	require.NoError(t, err)

	v, ok := masked.Sample("B4", 2, 0)
	assert.True(t, ok)
	assert.Equal(t, 300.0, v)

	_, ok = masked.Sample("B4", 1, 0)
	assert.False(t, ok)
	assert.Equal(t, img.Metadata, masked.Metadata)
}

func TestMaskIsIdempotent(t *testing.T) {
	t.Parallel()

	img := sceneWithQA(t, []float64{322, 324, 322, 480}, nil)
	once, err := Mask(img, DefaultQABand, ClearCode)
	require.NoError(t, err)
	twice, err := Mask(once, DefaultQABand, ClearCode)
	require.NoError(t, err)

	for _, name := range once.BandNames() {
		a, _ := once.Band(name)
		b, _ := twice.Band(name)
		assert.Equal(t, a.Mask(), b.Mask())
	}
}

func TestMaskedQACountsAsCloudy(t *testing.T) {
	t.Parallel()

	img := sceneWithQA(t, []float64{322, 322}, []bool{false, true})
	masked, err := Mask(img, DefaultQABand, ClearCode)
	require.NoError(t, err)

	band, _ := masked.Band("B4")
	assert.Equal(t, []bool{false, true}, band.Mask())
}

func TestMaskMissingBand(t *testing.T) {
	t.Parallel()

	img := sceneWithQA(t, []float64{322}, nil)
	_, err := Mask(img, "BQA", ClearCode)
	assert.ErrorIs(t, err, raster.ErrMissingBand)

	_, err = Func("BQA", ClearCode)(context.Background(), img)
	assert.ErrorIs(t, err, raster.ErrMissingBand)
}
