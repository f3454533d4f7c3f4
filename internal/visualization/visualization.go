// Package visualization maps raster bands to display colors.
package visualization

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

// Visualization selects bands and maps their values to colors.
type Visualization struct {
	Bands   []string
	Min     float64
	Max     float64
	Palette []string
	// Color is used for single band layers with no palette or range,
	// such as region outlines.
	Color string
}

// NDVIPalette runs from bare soil to dense vegetation.
var NDVIPalette = []string{
	"FFFFFF", "CE7E45", "DF923D", "F1B555", "FCD163", "99B718",
	"74A901", "66A000", "529400", "3E8601", "207401", "056201",
	"004C00", "023B01", "012E01", "011D01", "011301",
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func parseHex(hex string) (color.RGBA, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// Ramp maps norm in [0, 1] onto evenly spaced palette stops.
func Ramp(palette []color.RGBA, norm float64) color.RGBA {
	if len(palette) == 1 {
		return palette[0]
	}
	pos := norm * float64(len(palette)-1)
	i := int(pos)
	if i >= len(palette)-1 {
		return palette[len(palette)-1]
	}
	t := pos - float64(i)
	a, b := palette[i], palette[i+1]
	return color.RGBA{R: lerp(a.R, b.R, t), G: lerp(a.G, b.G, t), B: lerp(a.B, b.B, t), A: 255}
}

func (vis Visualization) Select(img *raster.Image) ([]raster.Band, error) {
	names := vis.Bands
	if len(names) == 0 {
		all := img.BandNames()
		switch {
		case len(all) == 0:
			return nil, fmt.Errorf("image %s has no bands", img.ID)
		case len(all) >= 3 && len(vis.Palette) == 0 && vis.Color == "":
			names = all[:3]
		default:
			names = all[:1]
		}
	}
	bands := make([]raster.Band, len(names))
	for i, name := range names {
		band, ok := img.Band(name)
		if !ok {
			return nil, fmt.Errorf("visualization of %s: %w: %s", img.ID, raster.ErrMissingBand, name)
		}
		bands[i] = band
	}
	return bands, nil
}

// Colorizer returns the color of pixel i, or false where it is no-data.
func (vis Visualization) Colorizer(bands []raster.Band) (func(i int) (color.RGBA, bool), error) {
	switch {
	case len(bands) == 1 && vis.Color != "":
		c, err := parseHex(vis.Color)
		if err != nil {
			return nil, err
		}
		return func(i int) (color.RGBA, bool) {
			return c, bands[0].Valid(i)
		}, nil
	case len(bands) == 1 && len(vis.Palette) > 0:
		palette := make([]color.RGBA, len(vis.Palette))
		for i, hex := range vis.Palette {
			c, err := parseHex(hex)
			if err != nil {
				return nil, err
			}
			palette[i] = c
		}
		return func(i int) (color.RGBA, bool) {
			v, ok := bands[0].At(i)
			if !ok {
				return color.RGBA{}, false
			}
			return Ramp(palette, normalize(v, vis.Min, vis.Max)), true
		}, nil
	case len(bands) == 1:
		return func(i int) (color.RGBA, bool) {
			v, ok := bands[0].At(i)
			if !ok {
				return color.RGBA{}, false
			}
			gray := uint8(255*normalize(v, vis.Min, vis.Max) + 0.5)
			return color.RGBA{R: gray, G: gray, B: gray, A: 255}, true
		}, nil
	case len(bands) == 3:
		return func(i int) (color.RGBA, bool) {
			var rgb [3]uint8
			for b, band := range bands {
				v, ok := band.At(i)
				if !ok {
					return color.RGBA{}, false
				}
				rgb[b] = uint8(255*normalize(v, vis.Min, vis.Max) + 0.5)
			}
			return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
		}, nil
	}
	return nil, fmt.Errorf("visualization needs 1 or 3 bands, got %d", len(bands))
}
