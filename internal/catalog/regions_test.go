package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const farmGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"plot_id": 1},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"plot_id": "2"},
      "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}
    }
  ]
}`

func writeRegions(t *testing.T) *Regions {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "farm.geojson"), []byte(farmGeoJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	return NewRegions(dir)
}

func TestRegionsResolve(t *testing.T) {
	t.Parallel()

	regions := writeRegions(t)

	plot, err := regions.Resolve("farm/1")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, plot.Bound())

	plot, err = regions.Resolve("farm/2")
	require.NoError(t, err)
	assert.True(t, plot.Contains(orb.Point{2.5, 0.5}))

	whole, err := regions.Resolve("farm")
	require.NoError(t, err)
	assert.IsType(t, orb.MultiPolygon{}, whole.Orb())
	assert.True(t, whole.Contains(orb.Point{0.5, 0.5}))
	assert.True(t, whole.Contains(orb.Point{2.5, 0.5}))
	assert.False(t, whole.Contains(orb.Point{1.5, 0.5}))
}

func TestRegionsResolveMissing(t *testing.T) {
	t.Parallel()

	regions := writeRegions(t)

	_, err := regions.Resolve("ranch")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = regions.Resolve("farm/9")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestRegionsList(t *testing.T) {
	t.Parallel()

	ids, err := writeRegions(t).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"farm", "farm/1", "farm/2"}, ids)

	_, err = NewRegions(filepath.Join(t.TempDir(), "missing")).List()
	assert.Error(t, err)
}
