package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/fogleman/gg"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/utils"
	"github.com/forest-guardian/greenness-mosaic/internal/visualization"
)

// RenderPNG draws the visualization of img to path. No-data pixels are
// left transparent.
func RenderPNG(img *raster.Image, vis visualization.Visualization, path string) error {
	bands, err := vis.Select(img)
	if err != nil {
		return err
	}
	colorAt, err := vis.Colorizer(bands)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	dc := gg.NewContext(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c, ok := colorAt(img.Index(x, y))
			if !ok {
				continue
			}
			dc.SetColor(c)
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// WriteGeoTIFF writes the named bands of img (all bands when none are
// given) as Float64 samples, with raster.NoData marking masked pixels.
func WriteGeoTIFF(img *raster.Image, path string, names ...string) error {
	if len(names) > 0 {
		var err error
		if img, err = img.Select(names...); err != nil {
			return err
		}
	}
	bands := img.Bands()
	if len(bands) == 0 {
		return fmt.Errorf("image %s has no bands to write", img.ID)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	var err error
	utils.ExecuteWithMutex(func() {
		err = writeGeoTIFF(img, bands, path)
	})
	return err
}

func writeGeoTIFF(img *raster.Image, bands []raster.Band, path string) error {
	utils.RegisterGDAL()
	ds, err := godal.Create(godal.GTiff, path, len(bands), godal.Float64, img.Width, img.Height)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform([6]float64(img.Transform)); err != nil {
		return fmt.Errorf("failed to set GeoTransform: %w", err)
	}
	if img.Geographic {
		sr, err := godal.NewSpatialRefFromEPSG(4326)
		if err != nil {
			return err
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("failed to set spatial reference: %w", err)
		}
	}

	for i, band := range ds.Bands() {
		src := bands[i]
		buf := make([]float64, len(src.Data))
		for j := range buf {
			buf[j], _ = src.At(j)
		}
		if err := band.SetNoData(raster.NoData); err != nil {
			return err
		}
		if err := band.SetDescription(src.Name); err != nil {
			return err
		}
		if err := band.Write(0, 0, buf, img.Width, img.Height); err != nil {
			return fmt.Errorf("failed to write band %s: %w", src.Name, err)
		}
	}
	return nil
}
