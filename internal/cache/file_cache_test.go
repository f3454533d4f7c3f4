package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scene struct {
	Path  string `json:"path"`
	Empty bool   `json:"empty"`
}

func TestFileCacheRoundTrip(t *testing.T) {
	t.Parallel()

	fc := NewFileCache[scene](filepath.Join(t.TempDir(), "scenes"))
	key := fc.GenerateKey("LANDSAT/LC08/C01/T1_SR", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))

	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, fc.Set(key, scene{Path: "a.tif"}))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, scene{Path: "a.tif"}, got)

	require.NoError(t, fc.Set(key, scene{Empty: true}))
	got, ok = fc.Get(key)
	require.True(t, ok)
	assert.True(t, got.Empty)
}

func TestFileCacheRejectsTamperedEntries(t *testing.T) {
	t.Parallel()

	fc := NewFileCache[scene](t.TempDir())
	key := fc.GenerateKey("k")
	require.NoError(t, fc.Set(key, scene{Path: "a.tif"}))

	file := filepath.Join(fc.Dir(), key+".json")
	require.NoError(t, os.WriteFile(file, []byte(`{"data":{"path":"b.tif","empty":false},"checksum":"0"}`), 0644))

	_, ok := fc.Get(key)
	assert.False(t, ok)
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	fc := NewFileCache[scene](t.TempDir())
	assert.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	assert.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
	assert.Len(t, fc.GenerateKey("a"), 40)
}
