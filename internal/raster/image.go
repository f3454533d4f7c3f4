package raster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// NoData is what masked samples read as.
const NoData = -9999.0

// Band is a named 2D grid of samples stored row-major. Samples are never
// written after construction; images derived from each other share them.
type Band struct {
	Name  string
	Data  []float64
	valid []bool
}

// NewBand builds a band. A nil valid slice marks every sample as valid.
func NewBand(name string, data []float64, valid []bool) Band {
	return Band{Name: name, Data: data, valid: valid}
}

func (b Band) Valid(i int) bool {
	return b.valid == nil || b.valid[i]
}

// At returns the sample at i, or NoData and false when it is masked.
func (b Band) At(i int) (float64, bool) {
	if !b.Valid(i) {
		return NoData, false
	}
	return b.Data[i], true
}

func (b Band) ValidCount() int {
	if b.valid == nil {
		return len(b.Data)
	}
	count := 0
	for _, ok := range b.valid {
		if ok {
			count++
		}
	}
	return count
}

// Mask returns a copy of the validity mask.
func (b Band) Mask() []bool {
	mask := make([]bool, len(b.Data))
	for i := range mask {
		mask[i] = b.Valid(i)
	}
	return mask
}

type Metadata struct {
	ID        string
	Time      time.Time
	Footprint orb.Bound
}

// Image is an immutable multi-band raster. Every transformation returns a
// new Image.
type Image struct {
	Metadata
	Grid
	bands []Band
}

func NewImage(meta Metadata, grid Grid, bands ...Band) (*Image, error) {
	seen := make(map[string]struct{}, len(bands))
	for _, band := range bands {
		if _, ok := seen[band.Name]; ok {
			return nil, fmt.Errorf("image %s: %w: %s", meta.ID, ErrBandExists, band.Name)
		}
		seen[band.Name] = struct{}{}
		if len(band.Data) != grid.Len() {
			return nil, fmt.Errorf("image %s: band %s has %d samples, grid has %d", meta.ID, band.Name, len(band.Data), grid.Len())
		}
		if band.valid != nil && len(band.valid) != grid.Len() {
			return nil, fmt.Errorf("image %s: band %s mask has %d entries, grid has %d", meta.ID, band.Name, len(band.valid), grid.Len())
		}
	}
	if meta.Footprint == (orb.Bound{}) {
		meta.Footprint = grid.Bound()
	}
	return &Image{Metadata: meta, Grid: grid, bands: append([]Band(nil), bands...)}, nil
}

func (img *Image) BandNames() []string {
	names := make([]string, len(img.bands))
	for i, band := range img.bands {
		names[i] = band.Name
	}
	return names
}

func (img *Image) Bands() []Band {
	return append([]Band(nil), img.bands...)
}

func (img *Image) Band(name string) (Band, bool) {
	for _, band := range img.bands {
		if band.Name == name {
			return band, true
		}
	}
	return Band{}, false
}

func (img *Image) HasBand(name string) bool {
	_, ok := img.Band(name)
	return ok
}

// Sample reads band name at pixel (x, y).
func (img *Image) Sample(name string, x, y int) (float64, bool) {
	band, ok := img.Band(name)
	if !ok {
		return NoData, false
	}
	return band.At(img.Index(x, y))
}

// UpdateMask masks every band wherever keep is false. Pixels that are
// already masked stay masked.
func (img *Image) UpdateMask(keep []bool) (*Image, error) {
	if len(keep) != img.Len() {
		return nil, fmt.Errorf("image %s: mask has %d entries, grid has %d: %w", img.ID, len(keep), img.Len(), ErrGridMismatch)
	}
	bands := make([]Band, len(img.bands))
	for b, band := range img.bands {
		valid := make([]bool, len(band.Data))
		for i := range valid {
			valid[i] = keep[i] && band.Valid(i)
		}
		bands[b] = Band{Name: band.Name, Data: band.Data, valid: valid}
	}
	return &Image{Metadata: img.Metadata, Grid: img.Grid, bands: bands}, nil
}

// AddBand appends a band, leaving the existing ones untouched.
func (img *Image) AddBand(band Band) (*Image, error) {
	if img.HasBand(band.Name) {
		return nil, fmt.Errorf("image %s: %w: %s", img.ID, ErrBandExists, band.Name)
	}
	return NewImage(img.Metadata, img.Grid, append(img.Bands(), band)...)
}

// Select keeps the named bands, in the given order.
func (img *Image) Select(names ...string) (*Image, error) {
	bands := make([]Band, 0, len(names))
	for _, name := range names {
		band, ok := img.Band(name)
		if !ok {
			return nil, fmt.Errorf("image %s: %w: %s", img.ID, ErrMissingBand, name)
		}
		bands = append(bands, band)
	}
	return NewImage(img.Metadata, img.Grid, bands...)
}
