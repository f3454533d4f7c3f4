package pipeline

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

type Stage interface {
	Name() string
	Apply(c *Collection) *Collection
}

type mapStage struct {
	name string
	fn   ImageFunc
}

func (s mapStage) Name() string { return s.name }

func (s mapStage) Apply(c *Collection) *Collection { return c.Map(s.fn) }

type filterStage struct {
	name string
	keep func(raster.Metadata) bool
}

func (s filterStage) Name() string { return s.name }

func (s filterStage) Apply(c *Collection) *Collection { return c.Filter(s.keep) }

func MapStage(name string, fn ImageFunc) Stage {
	return mapStage{name: name, fn: fn}
}

func FilterStage(name string, keep func(raster.Metadata) bool) Stage {
	return filterStage{name: name, keep: keep}
}

// DateRange keeps items acquired in [start, end).
func DateRange(start, end time.Time) Stage {
	return FilterStage("filterDate", func(meta raster.Metadata) bool {
		return !meta.Time.Before(start) && meta.Time.Before(end)
	})
}

// Bounds keeps items whose footprint intersects the geometry bound.
func Bounds(g *raster.Geometry) Stage {
	return FilterStage("filterBounds", func(meta raster.Metadata) bool {
		return g.Intersects(meta.Footprint)
	})
}

func Select(bands ...string) Stage {
	return MapStage("select("+strings.Join(bands, ",")+")", func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		return img.Select(bands...)
	})
}

// Builder assembles a Plan. It holds no data.
type Builder struct {
	name   string
	stages []Stage
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

func (b *Builder) Then(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}

func (b *Builder) FilterDate(start, end time.Time) *Builder {
	return b.Then(DateRange(start, end))
}

func (b *Builder) FilterBounds(g *raster.Geometry) *Builder {
	return b.Then(Bounds(g))
}

func (b *Builder) Map(name string, fn ImageFunc) *Builder {
	return b.Then(MapStage(name, fn))
}

func (b *Builder) Select(bands ...string) *Builder {
	return b.Then(Select(bands...))
}

func (b *Builder) Build() *Plan {
	return &Plan{name: b.name, stages: slices.Clone(b.stages)}
}

// Plan is an ordered list of stages. Plans sharing a prefix form a
// branching pipeline; see Extend.
type Plan struct {
	name   string
	stages []Stage
}

func (p *Plan) Name() string {
	return p.name
}

func (p *Plan) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Plan) String() string {
	return p.name + ": " + strings.Join(p.Stages(), " -> ")
}

// Apply describes the plan's output for c. Nothing is loaded.
func (p *Plan) Apply(c *Collection) *Collection {
	for _, s := range p.stages {
		c = s.Apply(c)
	}
	return c
}

// Extend starts a new branch that runs every stage of p first.
func (p *Plan) Extend(name string) *Builder {
	return &Builder{name: name, stages: slices.Clone(p.stages)}
}
