package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/cloudmask"
	"github.com/forest-guardian/greenness-mosaic/internal/composite"
	"github.com/forest-guardian/greenness-mosaic/internal/index"
	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/platform"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/paulmach/orb"
)

// Plans are the branches of the pipeline: Index extends Masked, Series
// extends Index.
type Plans struct {
	Masked *pipeline.Plan
	Index  *pipeline.Plan
	Series *pipeline.Plan
}

func BuildPlans(cfg Config) Plans {
	masked := pipeline.NewBuilder("cloud masked").
		Map(fmt.Sprintf("maskClouds(%s==%d)", cfg.QABand, cfg.ClearCode), cloudmask.Func(cfg.QABand, cfg.ClearCode)).
		Build()
	indexed := masked.Extend(cfg.IndexBand).
		Map("normalizedDifference("+cfg.NIRBand+","+cfg.RedBand+")", index.Func(cfg.NIRBand, cfg.RedBand, cfg.IndexBand)).
		Build()
	timeSeries := indexed.Extend(cfg.IndexBand + " series").
		Select(cfg.IndexBand).
		Build()
	return Plans{Masked: masked, Index: indexed, Series: timeSeries}
}

func query(cfg Config, region *raster.Geometry) platform.Query {
	return platform.Query{Catalog: cfg.Catalog, Start: cfg.Start, End: cfg.End, Bounds: region}
}

// Describe lists every plan of a run without touching any data.
func Describe(cfg Config) []string {
	plans := BuildPlans(cfg)
	return []string{
		query(cfg, nil).Plan().String() + " -> filterBounds(" + cfg.AssetID + ")",
		plans.Masked.String(),
		plans.Index.String() + " -> qualityMosaic(" + cfg.IndexBand + ") -> clip",
		plans.Series.String() + fmt.Sprintf(" -> reduce(mean, scale=%g)", cfg.Scale),
	}
}

type Result struct {
	Region    *raster.Geometry
	Center    orb.Point
	Images    int
	Composite *raster.Image
	Series    series.Series
}

type layer struct {
	image   *raster.Image
	vis     platform.Visualization
	name    string
	visible bool
}

// RunComposite computes every output first and only then calls the
// render and chart sinks, so a failing stage never leaves a partial
// render behind.
func RunComposite(ctx context.Context, p platform.Platform, cfg Config, exec pipeline.Executor, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	region, err := p.ResolveAsset(ctx, cfg.AssetID)
	if err != nil {
		return nil, err
	}
	result := &Result{Region: region}
	if center, err := region.Centroid(); err == nil {
		result.Center = center
		logger.Info("region resolved", "asset", cfg.AssetID, "center_lon", center.Lon(), "center_lat", center.Lat())
	} else {
		logger.Warn("region has no centroid", "asset", cfg.AssetID, "error", err)
	}

	stepStart := time.Now()
	collection, err := p.QueryCollection(ctx, query(cfg, region))
	if err != nil {
		return nil, err
	}
	result.Images = collection.Len()
	logCollection(logger, cfg.Catalog, collection)
	logger.Debug("query collection", "took", time.Since(stepStart))

	plans := BuildPlans(cfg)
	masked := plans.Masked.Apply(collection)
	indexed := plans.Index.Apply(collection)

	stepStart = time.Now()
	images, err := indexed.Materialize(ctx, exec)
	if err != nil {
		return nil, err
	}
	logger.Debug("mask and index", "took", time.Since(stepStart))

	stepStart = time.Now()
	mosaic, err := composite.QualityMosaic(images, cfg.IndexBand)
	if err != nil {
		return nil, err
	}
	clipped, err := composite.Clip(mosaic, region)
	if err != nil {
		return nil, err
	}
	result.Composite = clipped
	logger.Debug("quality mosaic", "took", time.Since(stepStart))

	stepStart = time.Now()
	timeSeries, err := series.ReduceCollection(ctx, exec, plans.Series.Apply(pipeline.FromImages(images...)), region, series.Options{
		Reducer: series.Mean,
		Scale:   cfg.Scale,
	})
	if err != nil {
		return nil, err
	}
	result.Series = timeSeries
	logger.Debug("reduce series", "took", time.Since(stepStart))

	original, err := loadFirst(ctx, collection)
	if err != nil {
		return nil, err
	}
	logger.Info("first image", "id", original.ID, "bands", original.BandNames())
	firstMasked, err := loadFirst(ctx, masked)
	if err != nil {
		return nil, err
	}
	regionImage, err := region.Rasterize(clipped.Grid, "region")
	if err != nil {
		return nil, err
	}

	layers := []layer{
		{regionImage, platform.Visualization{Color: cfg.RegionColor}, cfg.RegionLayer, true},
		{original, cfg.Inspection, "inspection", false},
		{firstMasked, cfg.Inspection, "cloud masked", false},
		{original, cfg.Inspection, "original", false},
		{clipped, cfg.IndexVis, "ndvi", true},
		{clipped, cfg.TrueColor, "true color composite", false},
	}
	for _, l := range layers {
		if err := p.Render(ctx, l.image, l.vis, l.name, l.visible); err != nil {
			return nil, err
		}
	}
	if err := p.Chart(ctx, timeSeries, cfg.ChartTitle); err != nil {
		return nil, err
	}

	logger.Info("composite finished", "asset", cfg.AssetID, "images", result.Images, "points", len(timeSeries), "took", time.Since(start))
	return result, nil
}

func loadFirst(ctx context.Context, c *pipeline.Collection) (*raster.Image, error) {
	first, err := c.First()
	if err != nil {
		return nil, err
	}
	return first.Load(ctx)
}

func logCollection(logger *slog.Logger, catalogID string, c *pipeline.Collection) {
	meta := c.Metadata()
	if len(meta) == 0 {
		logger.Info("collection is empty", "catalog", catalogID)
		return
	}
	logger.Info("collection",
		"catalog", catalogID,
		"images", len(meta),
		"first", meta[0].Time.Format("2006-01-02"),
		"last", meta[len(meta)-1].Time.Format("2006-01-02"))
}
