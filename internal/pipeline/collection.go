// Package pipeline describes image collections and the stages applied to
// them. Applying a stage only composes loaders; nothing is read or computed
// until a collection is materialized through an Executor.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
)

type ImageFunc func(ctx context.Context, img *raster.Image) (*raster.Image, error)

type Loader func(ctx context.Context) (*raster.Image, error)

// Item is a collection member: metadata known up front, pixels on demand.
type Item struct {
	raster.Metadata
	load Loader
}

func NewItem(meta raster.Metadata, load Loader) Item {
	return Item{Metadata: meta, load: load}
}

func (it Item) Load(ctx context.Context) (*raster.Image, error) {
	return it.load(ctx)
}

// Collection is an ordered, immutable sequence of items, sorted by
// acquisition time.
type Collection struct {
	items []Item
}

func NewCollection(items ...Item) *Collection {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		return a.Time.Compare(b.Time)
	})
	return &Collection{items: sorted}
}

// FromImages wraps images that are already in memory.
func FromImages(images ...*raster.Image) *Collection {
	items := make([]Item, len(images))
	for i, img := range images {
		img := img
		items[i] = NewItem(img.Metadata, func(context.Context) (*raster.Image, error) {
			return img, nil
		})
	}
	return NewCollection(items...)
}

func (c *Collection) Len() int {
	return len(c.items)
}

func (c *Collection) Items() []Item {
	return slices.Clone(c.items)
}

func (c *Collection) Metadata() []raster.Metadata {
	meta := make([]raster.Metadata, len(c.items))
	for i, it := range c.items {
		meta[i] = it.Metadata
	}
	return meta
}

func (c *Collection) Filter(keep func(raster.Metadata) bool) *Collection {
	items := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if keep(it.Metadata) {
			items = append(items, it)
		}
	}
	return &Collection{items: items}
}

// Map returns a collection whose items apply fn after loading. An error
// only surfaces when the mapped item is loaded.
func (c *Collection) Map(fn ImageFunc) *Collection {
	items := make([]Item, len(c.items))
	for i, it := range c.items {
		it := it
		items[i] = NewItem(it.Metadata, func(ctx context.Context) (*raster.Image, error) {
			img, err := it.Load(ctx)
			if err != nil {
				return nil, err
			}
			return fn(ctx, img)
		})
	}
	return &Collection{items: items}
}

func (c *Collection) First() (Item, error) {
	if len(c.items) == 0 {
		return Item{}, raster.ErrEmptyCollection
	}
	return c.items[0], nil
}

// Materialize loads every item, keeping collection order in the result.
func (c *Collection) Materialize(ctx context.Context, exec Executor) ([]*raster.Image, error) {
	if exec == nil {
		exec = Sequential{}
	}
	images := make([]*raster.Image, len(c.items))
	err := exec.Run(ctx, len(c.items), func(ctx context.Context, i int) error {
		img, err := c.items[i].Load(ctx)
		if err != nil {
			return fmt.Errorf("image %s: %w", c.items[i].ID, err)
		}
		images[i] = img
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}
