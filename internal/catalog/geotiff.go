package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/utils"
)

const dateLayout = "2006-01-02"

// GeoTIFFCatalog reads catalogs laid out as
// <Root>/<sanitized catalog id>/<name>_YYYY-MM-DD.tif.
type GeoTIFFCatalog struct {
	Root   string
	Logger *slog.Logger
}

func NewGeoTIFFCatalog(root string, logger *slog.Logger) *GeoTIFFCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoTIFFCatalog{Root: root, Logger: logger}
}

func (g *GeoTIFFCatalog) Dir(catalogID string) string {
	return filepath.Join(g.Root, SanitizeID(catalogID))
}

// SceneName is the file name of the scene acquired on date.
func SceneName(catalogID string, date time.Time) string {
	return fmt.Sprintf("%s_%s.tif", SanitizeID(catalogID), date.Format(dateLayout))
}

func sceneDate(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if len(base) < len(dateLayout) {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, base[len(base)-len(dateLayout):])
	return date, err == nil
}

func (g *GeoTIFFCatalog) Query(ctx context.Context, q Query) (*pipeline.Collection, error) {
	dir := g.Dir(q.Catalog)
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, q.Catalog)
	}
	if err != nil {
		return nil, err
	}

	fallback := fallbackBandNames(q.Catalog)
	var items []pipeline.Item
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".tif") {
			continue
		}
		date, ok := sceneDate(file.Name())
		if !ok {
			g.Logger.Debug("skipping file without acquisition date", "file", file.Name())
			continue
		}
		if date.Before(q.Start) || !date.Before(q.End) {
			continue
		}

		path := filepath.Join(dir, file.Name())
		grid, err := ReadGrid(path)
		if err != nil {
			return nil, err
		}
		meta := raster.Metadata{ID: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())), Time: date, Footprint: grid.Bound()}
		items = append(items, pipeline.NewItem(meta, func(context.Context) (*raster.Image, error) {
			return ReadGeoTIFF(path, meta, fallback)
		}))
	}
	return q.Plan().Apply(pipeline.NewCollection(items...)), nil
}

func fallbackBandNames(catalogID string) []string {
	def, ok := Lookup(catalogID)
	if !ok {
		return nil
	}
	return append(def.BandNames(), DataMaskBand)
}

func openDataset(path string) (*godal.Dataset, error) {
	utils.RegisterGDAL()
	return godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
}

func gridOf(ds *godal.Dataset) (raster.Grid, error) {
	geoTransform, err := ds.GeoTransform()
	if err != nil {
		return raster.Grid{}, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	structure := ds.Structure()
	grid := raster.Grid{
		Width:     structure.SizeX,
		Height:    structure.SizeY,
		Transform: raster.GeoTransform(geoTransform),
	}
	if sr := ds.SpatialRef(); sr != nil {
		grid.Geographic = sr.Geographic()
	}
	return grid, nil
}

// ReadGrid reads only the georeferencing of a GeoTIFF.
func ReadGrid(path string) (raster.Grid, error) {
	var (
		grid raster.Grid
		err  error
	)
	utils.ExecuteWithMutex(func() {
		var ds *godal.Dataset
		ds, err = openDataset(path)
		if err != nil {
			err = fmt.Errorf("failed to open TIFF file %s: %w", path, err)
			return
		}
		defer ds.Close()
		grid, err = gridOf(ds)
	})
	return grid, err
}

// ReadGeoTIFF loads every band of path. Band names come from the band
// descriptions, then from fallback, then "band_<n>". NaN samples, GDAL
// nodata samples and pixels where a dataMask band is zero are masked; the dataMask band
// itself is dropped.
func ReadGeoTIFF(path string, meta raster.Metadata, fallback []string) (*raster.Image, error) {
	var (
		img *raster.Image
		err error
	)
	utils.ExecuteWithMutex(func() {
		img, err = readGeoTIFF(path, meta, fallback)
	})
	if err != nil {
		return nil, err
	}
	return applyDataMask(img)
}

func readGeoTIFF(path string, meta raster.Metadata, fallback []string) (*raster.Image, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file %s: %w", path, err)
	}
	defer ds.Close()

	grid, err := gridOf(ds)
	if err != nil {
		return nil, err
	}

	var bands []raster.Band
	for i, band := range ds.Bands() {
		name := band.Description()
		if name == "" && i < len(fallback) {
			name = fallback[i]
		}
		if name == "" {
			name = fmt.Sprintf("band_%d", i+1)
		}

		data := make([]float64, grid.Len())
		if err := band.Read(0, 0, data, grid.Width, grid.Height); err != nil {
			return nil, fmt.Errorf("failed to read data for band %s: %w", name, err)
		}

		nodata, hasNoData := band.NoData()
		valid := make([]bool, len(data))
		for j, v := range data {
			valid[j] = !math.IsNaN(v) && !(hasNoData && v == nodata)
		}
		bands = append(bands, raster.NewBand(name, data, valid))
	}
	return raster.NewImage(meta, grid, bands...)
}

func applyDataMask(img *raster.Image) (*raster.Image, error) {
	mask, ok := img.Band(DataMaskBand)
	if !ok {
		return img, nil
	}
	keep := make([]bool, img.Len())
	for i := range keep {
		v, valid := mask.At(i)
		keep[i] = valid && v != 0
	}
	masked, err := img.UpdateMask(keep)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range masked.BandNames() {
		if name != DataMaskBand {
			names = append(names, name)
		}
	}
	return masked.Select(names...)
}

// isEmptyScene reports whether no pixel of the scene carries data.
func isEmptyScene(path string, fallback []string) (bool, error) {
	img, err := ReadGeoTIFF(path, raster.Metadata{ID: filepath.Base(path)}, fallback)
	if err != nil {
		return false, err
	}
	for _, band := range img.Bands() {
		if band.ValidCount() > 0 {
			return false, nil
		}
	}
	return true, nil
}
