package raster

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Geometry is a read-only polygonal boundary used to filter and clip.
type Geometry struct {
	geom orb.Geometry
}

func NewGeometry(g orb.Geometry) (*Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return &Geometry{geom: v}, nil
	case orb.Bound:
		return &Geometry{geom: v.ToPolygon()}, nil
	case orb.Ring:
		return &Geometry{geom: orb.Polygon{v}}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotPolygonal, g)
	}
}

func (g *Geometry) Orb() orb.Geometry {
	return g.geom
}

func (g *Geometry) Bound() orb.Bound {
	return g.geom.Bound()
}

func (g *Geometry) Contains(p orb.Point) bool {
	if !g.Bound().Contains(p) {
		return false
	}
	switch v := g.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	}
	return false
}

func (g *Geometry) Intersects(b orb.Bound) bool {
	return g.Bound().Intersects(b)
}

func (g *Geometry) Centroid() (orb.Point, error) {
	centroid, area := planar.CentroidArea(g.geom)
	if area <= 0 {
		return orb.Point{}, errors.New("error getting centroid")
	}
	return centroid, nil
}

// Mask reports, per pixel of grid, whether the pixel center is inside.
func (g *Geometry) Mask(grid Grid) []bool {
	mask := make([]bool, grid.Len())
	if !g.Intersects(grid.Bound()) {
		return mask
	}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			mask[grid.Index(x, y)] = g.Contains(grid.PixelCenter(x, y))
		}
	}
	return mask
}

// Rasterize burns the geometry into a single band of ones on grid; pixels
// outside are no-data.
func (g *Geometry) Rasterize(grid Grid, name string) (*Image, error) {
	data := make([]float64, grid.Len())
	for i := range data {
		data[i] = 1
	}
	return NewImage(Metadata{ID: name}, grid, NewBand(name, data, g.Mask(grid)))
}
