package raster

import "errors"

var (
	ErrMissingBand        = errors.New("missing band")
	ErrMissingRankingBand = errors.New("missing ranking band")
	ErrEmptyCollection    = errors.New("empty image collection")
	ErrBandExists         = errors.New("band already exists")
	ErrGridMismatch       = errors.New("images are not on the same grid")
	ErrNotPolygonal       = errors.New("geometry is not a polygon or multipolygon")
)
