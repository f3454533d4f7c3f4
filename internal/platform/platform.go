// Package platform is the boundary between the pipeline and whatever hosts
// the imagery: asset lookup, catalog queries, and the display sinks.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/forest-guardian/greenness-mosaic/internal/visualization"
)

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrCatalogNotFound = errors.New("catalog not found")
)

type Visualization = visualization.Visualization

// Query selects catalog images acquired in [Start, End) whose footprint
// intersects Bounds. A nil Bounds disables the spatial filter.
type Query struct {
	Catalog string
	Start   time.Time
	End     time.Time
	Bounds  *raster.Geometry
}

// Plan is the filter part of the query as pipeline stages.
func (q Query) Plan() *pipeline.Plan {
	b := pipeline.NewBuilder(q.Catalog).FilterDate(q.Start, q.End)
	if q.Bounds != nil {
		b.FilterBounds(q.Bounds)
	}
	return b.Build()
}

type Platform interface {
	ResolveAsset(ctx context.Context, id string) (*raster.Geometry, error)
	// QueryCollection returns an empty collection, not an error, when
	// nothing matches.
	QueryCollection(ctx context.Context, q Query) (*pipeline.Collection, error)
	Render(ctx context.Context, img *raster.Image, vis Visualization, layer string, visible bool) error
	Chart(ctx context.Context, s series.Series, title string) error
}
