package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeries() series.Series {
	return series.Series{
		{Time: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), ID: "a", Value: 0.2, Valid: true},
		{Time: time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC), ID: "b", Value: raster.NoData},
		{Time: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), ID: "c", Value: 0.6, Valid: true},
	}
}

func TestValueRangeIgnoresInvalid(t *testing.T) {
	t.Parallel()

	lo, hi, ok := valueRange(testSeries())
	require.True(t, ok)
	assert.InDelta(t, 0.18, lo, 1e-9)
	assert.InDelta(t, 0.62, hi, 1e-9)

	_, _, ok = valueRange(series.Series{{Value: raster.NoData}})
	assert.False(t, ok)
}

func TestTimeRange(t *testing.T) {
	t.Parallel()

	start, end := timeRange(testSeries())
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), end)

	single := series.Series{{Time: start}}
	_, end = timeRange(single)
	assert.Equal(t, start.Add(24*time.Hour), end)
}

func TestChartPNG(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "chart.png")
	require.NoError(t, ChartPNG(testSeries(), "NDVI Band Mean", path))
	require.NoError(t, ChartPNG(nil, "empty", filepath.Join(dir, "empty.png")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteSeriesCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, WriteSeriesCSV(testSeries(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "time,image,value,valid", lines[0])
	assert.Contains(t, lines[1], "2019-01-01")
	assert.Contains(t, lines[2], ",b,")
	assert.True(t, strings.HasSuffix(lines[2], "false"))
}
