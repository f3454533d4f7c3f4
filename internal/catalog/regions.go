package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const PlotIDProperty = "plot_id"

// Regions serves boundaries from <Dir>/<region>.geojson files. An asset
// id is "<region>" for the whole file or "<region>/<plot>" for the feature
// whose plot_id matches.
type Regions struct {
	Dir string
}

func NewRegions(dir string) *Regions {
	return &Regions{Dir: dir}
}

func (r *Regions) load(region string) (*geojson.FeatureCollection, error) {
	filePath := filepath.Join(r.Dir, region+".geojson")
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, region)
	}
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return fc, nil
}

func plotID(f *geojson.Feature) (string, bool) {
	val, ok := f.Properties[PlotIDProperty]
	if !ok || val == nil {
		return "", false
	}
	return fmt.Sprint(val), true
}

func (r *Regions) Resolve(id string) (*raster.Geometry, error) {
	region, plot, hasPlot := strings.Cut(id, "/")
	fc, err := r.load(region)
	if err != nil {
		return nil, err
	}

	if hasPlot {
		for _, feat := range fc.Features {
			if val, ok := plotID(feat); ok && val == plot {
				return raster.NewGeometry(feat.Geometry)
			}
		}
		return nil, fmt.Errorf("%w: geometry not found for region %s and plot %s", ErrAssetNotFound, region, plot)
	}

	var merged orb.MultiPolygon
	for _, feat := range fc.Features {
		switch g := feat.Geometry.(type) {
		case orb.Polygon:
			merged = append(merged, g)
		case orb.MultiPolygon:
			merged = append(merged, g...)
		}
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: region %s has no polygons", ErrAssetNotFound, region)
	}
	if len(merged) == 1 {
		return raster.NewGeometry(merged[0])
	}
	return raster.NewGeometry(merged)
}

// List returns every region id followed by its plot ids.
func (r *Regions) List() ([]string, error) {
	files, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("error reading geojsons folder: %w", err)
	}
	var ids []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".geojson") {
			continue
		}
		region := strings.TrimSuffix(file.Name(), ".geojson")
		ids = append(ids, region)

		fc, err := r.load(region)
		if err != nil {
			return nil, err
		}
		var plots []string
		for _, feat := range fc.Features {
			if val, ok := plotID(feat); ok {
				plots = append(plots, region+"/"+val)
			}
		}
		sort.Strings(plots)
		ids = append(ids, plots...)
	}
	return ids, nil
}
