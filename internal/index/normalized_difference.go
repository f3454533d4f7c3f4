package index

import (
	"context"
	"fmt"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

const (
	NDVIBand = "NDVI"
	// Landsat 8 OLI near infrared and red.
	LandsatNIR = "B5"
	LandsatRed = "B4"
)

// NormalizedDifference appends band name = (a - b) / (a + b). The new
// band is no-data wherever an input is no-data or a + b is zero.
func NormalizedDifference(img *raster.Image, a, b, name string) (*raster.Image, error) {
	bandA, ok := img.Band(a)
	if !ok {
		return nil, fmt.Errorf("normalized difference %s: %w: %s", img.ID, raster.ErrMissingBand, a)
	}
	bandB, ok := img.Band(b)
	if !ok {
		return nil, fmt.Errorf("normalized difference %s: %w: %s", img.ID, raster.ErrMissingBand, b)
	}

	data := make([]float64, img.Len())
	valid := make([]bool, img.Len())
	for i := range data {
		va, okA := bandA.At(i)
		vb, okB := bandB.At(i)
		denominator := va + vb
		if !okA || !okB || denominator == 0 {
			data[i] = raster.NoData
			continue
		}
		data[i] = (va - vb) / denominator
		valid[i] = true
	}
	return img.AddBand(raster.NewBand(name, data, valid))
}

func Func(a, b, name string) pipeline.ImageFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		return NormalizedDifference(img, a, b, name)
	}
}

// NDVI derives the vegetation index from the given near infrared and red
// bands into NDVIBand.
func NDVI(nir, red string) pipeline.ImageFunc {
	return Func(nir, red, NDVIBand)
}
