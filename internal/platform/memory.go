package platform

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
)

var _ Platform = (*Memory)(nil)

type RenderCall struct {
	Image   *raster.Image
	Vis     Visualization
	Layer   string
	Visible bool
}

type ChartCall struct {
	Series series.Series
	Title  string
}

// Memory serves synthetic assets and catalogs and records sink calls.
type Memory struct {
	mu       sync.Mutex
	assets   map[string]*raster.Geometry
	catalogs map[string][]*raster.Image
	renders  []RenderCall
	charts   []ChartCall
}

func NewMemory() *Memory {
	return &Memory{
		assets:   make(map[string]*raster.Geometry),
		catalogs: make(map[string][]*raster.Image),
	}
}

func (m *Memory) AddAsset(id string, g *raster.Geometry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[id] = g
}

func (m *Memory) AddCatalog(id string, images ...*raster.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs[id] = append(m.catalogs[id], images...)
}

func (m *Memory) ResolveAsset(_ context.Context, id string) (*raster.Geometry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return g, nil
}

func (m *Memory) QueryCollection(_ context.Context, q Query) (*pipeline.Collection, error) {
	m.mu.Lock()
	images, ok := m.catalogs[q.Catalog]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, q.Catalog)
	}
	return q.Plan().Apply(pipeline.FromImages(images...)), nil
}

func (m *Memory) Render(_ context.Context, img *raster.Image, vis Visualization, layer string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, RenderCall{Image: img, Vis: vis, Layer: layer, Visible: visible})
	return nil
}

func (m *Memory) Chart(_ context.Context, s series.Series, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charts = append(m.charts, ChartCall{Series: slices.Clone(s), Title: title})
	return nil
}

func (m *Memory) Renders() []RenderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.renders)
}

func (m *Memory) Charts() []ChartCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.charts)
}
