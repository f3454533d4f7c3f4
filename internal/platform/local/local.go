// Package local hosts the pipeline on the local filesystem: GeoJSON
// regions, GeoTIFF or Copernicus catalogs, and PNG/GeoTIFF/CSV results.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forest-guardian/greenness-mosaic/internal/catalog"
	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/platform"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/forest-guardian/greenness-mosaic/output"
)

var _ platform.Platform = (*Platform)(nil)

// Platform resolves assets from GeoJSON files, queries catalogs from
// Sources in order, and writes layers and charts under ResultDir.
type Platform struct {
	Regions      *catalog.Regions
	Sources      []catalog.Source
	ResultDir    string
	RenderHidden bool
	Logger       *slog.Logger
}

func (p *Platform) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Platform) ResolveAsset(_ context.Context, id string) (*raster.Geometry, error) {
	return p.Regions.Resolve(id)
}

// QueryCollection returns the first non-empty answer. Sources that do not
// know the catalog or have no matching scene are skipped; if every source
// that knows the catalog comes back empty, the last empty collection is
// returned.
func (p *Platform) QueryCollection(ctx context.Context, q platform.Query) (*pipeline.Collection, error) {
	var empty *pipeline.Collection
	for _, source := range p.Sources {
		collection, err := source.Query(ctx, q)
		if errors.Is(err, platform.ErrCatalogNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if collection.Len() > 0 {
			return collection, nil
		}
		p.logger().Debug("source has no scenes, trying the next one", "catalog", q.Catalog, "source", fmt.Sprintf("%T", source))
		empty = collection
	}
	if empty != nil {
		return empty, nil
	}
	return nil, fmt.Errorf("%w: %s", platform.ErrCatalogNotFound, q.Catalog)
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	return strings.Trim(nonWord.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

func (p *Platform) Render(_ context.Context, img *raster.Image, vis platform.Visualization, layer string, visible bool) error {
	if !visible && !p.RenderHidden {
		p.logger().Debug("skipping hidden layer", "layer", layer)
		return nil
	}
	base := filepath.Join(p.ResultDir, slug(layer))
	if err := output.RenderPNG(img, vis, base+".png"); err != nil {
		return fmt.Errorf("render layer %s: %w", layer, err)
	}
	if err := output.WriteGeoTIFF(img, base+".tif", vis.Bands...); err != nil {
		return fmt.Errorf("export layer %s: %w", layer, err)
	}
	p.logger().Info("layer rendered", "layer", layer, "path", base+".png")
	return nil
}

func (p *Platform) Chart(_ context.Context, s series.Series, title string) error {
	base := filepath.Join(p.ResultDir, slug(title))
	if err := output.ChartPNG(s, title, base+".png"); err != nil {
		return err
	}
	if err := output.WriteSeriesCSV(s, base+".csv"); err != nil {
		return err
	}
	p.logger().Info("chart written", "title", title, "path", base+".png", "points", len(s))
	return nil
}
