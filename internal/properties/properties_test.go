package properties

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share the package level configuration, so none run in parallel.

func TestDefaults(t *testing.T) {
	v = newViper()
	t.Cleanup(func() { v = newViper() })

	assert.Equal(t, DefaultProcessURL, CopernicusProcessURL())
	assert.Equal(t, 4, DownloadWorkers())
	assert.False(t, RenderHidden())
}

func TestPaths(t *testing.T) {
	v = newViper()
	t.Cleanup(func() { v = newViper() })

	Set("ROOT_PATH", "/srv/mosaic")
	assert.Equal(t, filepath.Join("/srv/mosaic", "data"), DataPath())
	assert.Equal(t, filepath.Join("/srv/mosaic", "data", "geojsons"), GeoJSONPath())
	assert.Equal(t, filepath.Join("/srv/mosaic", "data", "catalogs"), CatalogPath())
	assert.Equal(t, filepath.Join("/srv/mosaic", "data", "result"), ResultPath())
}

func TestLogLevel(t *testing.T) {
	v = newViper()
	t.Cleanup(func() { v = newViper() })

	Set("LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, LogLevel())
	Set("LOG_LEVEL", "chatty")
	assert.Equal(t, slog.LevelInfo, LogLevel())
}

func TestLoadEnvFile(t *testing.T) {
	v = newViper()
	t.Cleanup(func() { v = newViper() })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("COPERNICUS_CLIENT_ID=a, b\nCOPERNICUS_CLIENT_SECRET=x,y\n"), 0644))
	t.Setenv("COPERNICUS_CLIENT_ID", "")
	t.Setenv("COPERNICUS_CLIENT_SECRET", "")
	os.Unsetenv("COPERNICUS_CLIENT_ID")
	os.Unsetenv("COPERNICUS_CLIENT_SECRET")

	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, []string{"a", "b"}, CopernicusClientIDs())
	assert.Equal(t, []string{"x", "y"}, CopernicusClientSecrets())

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.env")))
}

func TestBindFlags(t *testing.T) {
	v = newViper()
	t.Cleanup(func() { v = newViper() })

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("download-workers", 0, "")
	flags.Bool("render-hidden", false, "")
	require.NoError(t, BindFlags(flags))
	require.NoError(t, flags.Parse([]string{"--download-workers=9", "--render-hidden"}))

	assert.Equal(t, 9, DownloadWorkers())
	assert.True(t, RenderHidden())
}
