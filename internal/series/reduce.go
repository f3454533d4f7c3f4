// Package series extracts per-image spatial aggregates as a time series.
package series

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

const DefaultScale = 250.0

type Point struct {
	Time  time.Time `csv:"time"`
	ID    string    `csv:"image"`
	Value float64   `csv:"value"`
	Valid bool      `csv:"valid"`
}

type Series []Point

// Reducer aggregates the valid samples of one image; it is never called
// with an empty slice.
type Reducer func(values []float64) float64

func Mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func Max(values []float64) float64 {
	result := math.Inf(-1)
	for _, v := range values {
		result = math.Max(result, v)
	}
	return result
}

func Min(values []float64) float64 {
	result := math.Inf(1)
	for _, v := range values {
		result = math.Min(result, v)
	}
	return result
}

type Options struct {
	// Band to reduce. May be empty when every image has exactly one band.
	Band    string
	Reducer Reducer
	// Scale is the sampling distance in metres.
	Scale float64
}

// Reduce returns one point per image, in input order. Images with no valid
// sample inside region yield an invalid point rather than being dropped.
func Reduce(images []*raster.Image, region *raster.Geometry, opts Options) (Series, error) {
	reducer := opts.Reducer
	if reducer == nil {
		reducer = Mean
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	result := make(Series, 0, len(images))
	for _, img := range images {
		band, err := pickBand(img, opts.Band)
		if err != nil {
			return nil, err
		}
		values := sample(img, band, region, scale)
		point := Point{Time: img.Time, ID: img.ID, Value: raster.NoData}
		if len(values) > 0 {
			point.Value = reducer(values)
			point.Valid = true
		}
		result = append(result, point)
	}
	return result, nil
}

func pickBand(img *raster.Image, name string) (raster.Band, error) {
	if name == "" {
		bands := img.Bands()
		if len(bands) != 1 {
			return raster.Band{}, fmt.Errorf("reduce %s: expected a single band, got %d", img.ID, len(bands))
		}
		return bands[0], nil
	}
	band, ok := img.Band(name)
	if !ok {
		return raster.Band{}, fmt.Errorf("reduce %s: %w: %s", img.ID, raster.ErrMissingBand, name)
	}
	return band, nil
}

// step converts the sampling scale into a pixel stride.
func step(grid raster.Grid, scale float64) int {
	size := grid.PixelSizeMeters()
	if size <= 0 {
		return 1
	}
	s := int(math.Round(scale / size))
	if s < 1 {
		return 1
	}
	return s
}

func sample(img *raster.Image, band raster.Band, region *raster.Geometry, scale float64) []float64 {
	if !region.Intersects(img.Grid.Bound()) {
		return nil
	}
	stride := step(img.Grid, scale)
	// A grid smaller than one sampling cell is still sampled at its middle.
	x0 := min(stride/2, (img.Width-1)/2)
	y0 := min(stride/2, (img.Height-1)/2)
	var values []float64
	for y := y0; y < img.Height; y += stride {
		for x := x0; x < img.Width; x += stride {
			v, ok := band.At(img.Index(x, y))
			if !ok || !region.Contains(img.PixelCenter(x, y)) {
				continue
			}
			values = append(values, v)
		}
	}
	return values
}

// ReduceCollection materializes c through exec and reduces it.
func ReduceCollection(ctx context.Context, exec pipeline.Executor, c *pipeline.Collection, region *raster.Geometry, opts Options) (Series, error) {
	images, err := c.Materialize(ctx, exec)
	if err != nil {
		return nil, err
	}
	return Reduce(images, region, opts)
}
