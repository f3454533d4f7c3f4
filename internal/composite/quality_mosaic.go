// Package composite collapses a collection into a single image.
package composite

import (
	"context"
	"fmt"
	"math"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

const MosaicID = "quality_mosaic"

// QualityMosaic builds one image where, per pixel, every band comes from
// the image holding the largest valid rankBand sample. NaN ranks are
// treated as no-data. Ties keep the
// earliest image in collection order. Pixels with no valid rank in any
// image are no-data in every band. Band set and order follow images[0].
func QualityMosaic(images []*raster.Image, rankBand string) (*raster.Image, error) {
	if len(images) == 0 {
		return nil, raster.ErrEmptyCollection
	}
	grid := images[0].Grid
	for _, img := range images {
		if !img.HasBand(rankBand) {
			return nil, fmt.Errorf("quality mosaic: image %s: %w: %s", img.ID, raster.ErrMissingRankingBand, rankBand)
		}
		if !img.Grid.Equal(grid) {
			return nil, fmt.Errorf("quality mosaic: image %s: %w", img.ID, raster.ErrGridMismatch)
		}
	}

	// winner[i] is the index of the chosen image at pixel i, or -1.
	winner := make([]int, grid.Len())
	best := make([]float64, grid.Len())
	for i := range winner {
		winner[i] = -1
	}
	for n, img := range images {
		rank, _ := img.Band(rankBand)
		for i := range winner {
			v, ok := rank.At(i)
			if !ok || math.IsNaN(v) {
				continue
			}
			if winner[i] == -1 || v > best[i] {
				winner[i] = n
				best[i] = v
			}
		}
	}

	names := images[0].BandNames()
	bands := make([]raster.Band, len(names))
	for b, name := range names {
		sources := make([]raster.Band, len(images))
		present := make([]bool, len(images))
		for n, img := range images {
			sources[n], present[n] = img.Band(name)
		}
		data := make([]float64, grid.Len())
		valid := make([]bool, grid.Len())
		for i, n := range winner {
			data[i] = raster.NoData
			if n == -1 || !present[n] {
				continue
			}
			if v, ok := sources[n].At(i); ok {
				data[i] = v
				valid[i] = true
			}
		}
		bands[b] = raster.NewBand(name, data, valid)
	}

	meta := raster.Metadata{ID: MosaicID, Time: images[0].Time}
	return raster.NewImage(meta, grid, bands...)
}

// Clip masks every pixel whose center falls outside g.
func Clip(img *raster.Image, g *raster.Geometry) (*raster.Image, error) {
	return img.UpdateMask(g.Mask(img.Grid))
}

// MosaicCollection materializes c through exec and mosaics the result.
func MosaicCollection(ctx context.Context, exec pipeline.Executor, c *pipeline.Collection, rankBand string) (*raster.Image, error) {
	if c.Len() == 0 {
		return nil, raster.ErrEmptyCollection
	}
	images, err := c.Materialize(ctx, exec)
	if err != nil {
		return nil, err
	}
	return QualityMosaic(images, rankBand)
}
