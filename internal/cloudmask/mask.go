// Package cloudmask removes pixels whose quality code is not the clear code.
//
// Matching is exact equality against a single code, not a bit decode of the
// QA word: any combination of cloud, shadow or snow flags is dropped along
// with every other non-clear state.
package cloudmask

import (
	"context"
	"fmt"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

const (
	DefaultQABand = "pixel_qa"
	// ClearCode is the Landsat 8 SR pixel_qa value for clear land with low
	// confidence cloud, cirrus and no shadow or snow.
	ClearCode = 322
)

// Mask returns img with every band masked where the QA sample is not
// exactly code. Masked QA samples count as not clear.
func Mask(img *raster.Image, qaBand string, code int) (*raster.Image, error) {
	qa, ok := img.Band(qaBand)
	if !ok {
		return nil, fmt.Errorf("cloud mask %s: %w: %s", img.ID, raster.ErrMissingBand, qaBand)
	}
	target := float64(code)
	keep := make([]bool, img.Len())
	for i := range keep {
		v, valid := qa.At(i)
		keep[i] = valid && v == target
	}
	return img.UpdateMask(keep)
}

// Func adapts Mask for mapping over a collection.
func Func(qaBand string, code int) pipeline.ImageFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		return Mask(img, qaBand, code)
	}
}
