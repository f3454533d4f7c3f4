package raster

import (
	"math"

	"github.com/paulmach/orb"
)

// Rough ground distance of one degree, good enough to pick a sampling step.
const MetersPerDegree = 111_000.0

// GeoTransform uses the GDAL affine layout:
// x = gt[0] + col*gt[1] + row*gt[2], y = gt[3] + col*gt[4] + row*gt[5].
type GeoTransform [6]float64

// Grid is the pixel lattice shared by every band of an Image.
type Grid struct {
	Width      int
	Height     int
	Transform  GeoTransform
	Geographic bool
}

func (g Grid) Len() int {
	return g.Width * g.Height
}

func (g Grid) Index(x, y int) int {
	return y*g.Width + x
}

func (g Grid) PixelCenter(x, y int) orb.Point {
	fx, fy := float64(x)+0.5, float64(y)+0.5
	return orb.Point{
		g.Transform[0] + fx*g.Transform[1] + fy*g.Transform[2],
		g.Transform[3] + fx*g.Transform[4] + fy*g.Transform[5],
	}
}

func (g Grid) corner(x, y int) orb.Point {
	fx, fy := float64(x), float64(y)
	return orb.Point{
		g.Transform[0] + fx*g.Transform[1] + fy*g.Transform[2],
		g.Transform[3] + fx*g.Transform[4] + fy*g.Transform[5],
	}
}

// Bound is the footprint of the grid in map coordinates.
func (g Grid) Bound() orb.Bound {
	b := g.corner(0, 0).Bound()
	b = b.Extend(g.corner(g.Width, 0))
	b = b.Extend(g.corner(0, g.Height))
	return b.Extend(g.corner(g.Width, g.Height))
}

// PixelSizeMeters approximates the ground size of one pixel side.
func (g Grid) PixelSizeMeters() float64 {
	size := math.Abs(g.Transform[1])
	if g.Geographic {
		size *= MetersPerDegree
	}
	return size
}

func (g Grid) Equal(other Grid) bool {
	return g.Width == other.Width && g.Height == other.Height &&
		g.Transform == other.Transform && g.Geographic == other.Geographic
}
