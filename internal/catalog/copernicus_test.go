package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/jarcoal/httpmock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	tokenURL   = "https://identity.example.test/token"
	processURL = "https://sh.example.test/api/v1/process"
	remoteID   = "LANDSAT/LC08/C02/T1_L2"
)

func testCatalog(t *testing.T, clients int) *CopernicusCatalog {
	t.Helper()
	creds := Credentials{TokenURL: tokenURL}
	for i := 0; i < clients; i++ {
		creds.ClientIDs = append(creds.ClientIDs, "client-"+string(rune('a'+i)))
		creds.ClientSecrets = append(creds.ClientSecrets, "secret")
	}
	c := NewCopernicusCatalog(processURL, creds, NewGeoTIFFCatalog(t.TempDir(), nil), t.TempDir(), nil)
	c.RetryDelay = 0
	c.Retries = 3
	return c
}

// mockContext routes token and process calls through a mock transport.
func mockContext(t *testing.T) (context.Context, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, tokenURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"access_token": "token",
		"token_type":   "bearer",
		"expires_in":   3600,
	}))
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})
	return ctx, transport
}

func testBounds(t *testing.T) *raster.Geometry {
	t.Helper()
	g, err := raster.NewGeometry(orb.Bound{Min: orb.Point{-60.01, -30.01}, Max: orb.Point{-60, -30}})
	require.NoError(t, err)
	return g
}

func landsat(t *testing.T) Definition {
	t.Helper()
	def, ok := Lookup(remoteID)
	require.True(t, ok)
	return def
}

func TestRequestImage(t *testing.T) {
	t.Parallel()

	ctx, transport := mockContext(t)
	var body map[string]any
	transport.RegisterResponder(http.MethodPost, processURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "Bearer token" {
			return httpmock.NewStringResponse(http.StatusUnauthorized, "no token"), nil
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return nil, err
		}
		return httpmock.NewBytesResponse(http.StatusOK, []byte("tiff")), nil
	})

	c := testCatalog(t, 1)
	date := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)
	content, err := c.requestImage(ctx, landsat(t), date, date.Add(time.Hour), testBounds(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("tiff"), content)

	output := body["output"].(map[string]any)
	assert.Equal(t, 37.0, output["width"])
	assert.Equal(t, 37.0, output["height"])
	assert.Equal(t, "mostRecent", body["mosaicking"])
	script := body["evalscript"].(string)
	assert.Contains(t, script, `"BQA"`)
	assert.Contains(t, script, "sample.B04 * 10000")
	assert.Contains(t, script, "sample.BQA, sample.dataMask")

	input := body["input"].(map[string]any)
	data := input["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "landsat-ot-l2", data["type"])
	geometry := input["bounds"].(map[string]any)["geometry"].(map[string]any)
	assert.Equal(t, "Polygon", geometry["type"])
}

func TestPostRetries(t *testing.T) {
	t.Parallel()

	ctx, transport := mockContext(t)
	var calls atomic.Int32
	transport.RegisterResponder(http.MethodPost, processURL, func(*http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
		}
		return httpmock.NewBytesResponse(http.StatusOK, []byte("tiff")), nil
	})

	c := testCatalog(t, 1)
	date := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)
	content, err := c.requestImage(ctx, landsat(t), date, date, testBounds(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("tiff"), content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostGivesUp(t *testing.T) {
	t.Parallel()

	ctx, transport := mockContext(t)
	transport.RegisterResponder(http.MethodPost, processURL, httpmock.NewStringResponder(http.StatusInternalServerError, "down"))

	c := testCatalog(t, 1)
	date := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)
	_, err := c.requestImage(ctx, landsat(t), date, date, testBounds(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, transport.GetCallCountInfo()["POST "+processURL])
}

func TestRequestImageFallsBackOnForbidden(t *testing.T) {
	t.Parallel()

	ctx, transport := mockContext(t)
	var calls atomic.Int32
	transport.RegisterResponder(http.MethodPost, processURL, func(*http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return httpmock.NewStringResponse(http.StatusForbidden, "quota"), nil
		}
		return httpmock.NewBytesResponse(http.StatusOK, []byte("tiff")), nil
	})

	c := testCatalog(t, 2)
	date := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)
	content, err := c.requestImage(ctx, landsat(t), date, date, testBounds(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("tiff"), content)
	assert.Equal(t, int32(2), calls.Load(), "403 is not retried with the same credential")
}

func TestRequestImageUnauthorized(t *testing.T) {
	t.Parallel()

	ctx, transport := mockContext(t)
	transport.RegisterResponder(http.MethodPost, processURL, httpmock.NewStringResponder(http.StatusForbidden, "403 forbidden"))

	c := testCatalog(t, 1)
	date := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)
	_, err := c.requestImage(ctx, landsat(t), date, date, testBounds(t))
	assert.True(t, errors.Is(err, errUnauthorized))
}

func TestCopernicusQueryValidation(t *testing.T) {
	t.Parallel()

	c := testCatalog(t, 1)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Query(context.Background(), Query{Catalog: "MODIS/006/MOD13Q1", Start: start, End: start.AddDate(0, 0, 1), Bounds: testBounds(t)})
	assert.ErrorIs(t, err, ErrCatalogNotFound)

	// Collection 1 QA codes are not what the process API serves.
	_, err = c.Query(context.Background(), Query{Catalog: landsatID, Start: start, End: start.AddDate(0, 0, 1), Bounds: testBounds(t)})
	assert.ErrorIs(t, err, ErrCatalogNotFound)
	_, _, err = c.FetchScene(context.Background(), landsatID, testBounds(t), start)
	assert.ErrorIs(t, err, ErrCatalogNotFound)

	_, err = c.Query(context.Background(), Query{Catalog: remoteID, Start: start, End: start.AddDate(0, 0, 1)})
	assert.Error(t, err)

	c.Credentials.ClientSecrets = nil
	_, err = c.Query(context.Background(), Query{Catalog: remoteID, Start: start, End: start.AddDate(0, 0, 1), Bounds: testBounds(t)})
	assert.Error(t, err)
}

func TestCopernicusQueryUsesCache(t *testing.T) {
	t.Parallel()

	c := testCatalog(t, 1)
	def := landsat(t)
	bounds := testBounds(t)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	// day one has no data, day two was downloaded before
	require.NoError(t, c.Cache.Set(c.Cache.GenerateKey(def.ID, bounds.Bound(), "2019-01-01"), sceneRecord{Empty: true}))
	writeScene(t, c.Store, start.AddDate(0, 0, 1), []float64{322, 322}, []float64{1, 1})
	path := filepath.Join(c.Store.Dir(landsatID), SceneName(landsatID, start.AddDate(0, 0, 1)))
	require.NoError(t, c.Cache.Set(c.Cache.GenerateKey(def.ID, bounds.Bound(), "2019-01-02"), sceneRecord{Path: path}))

	collection, err := c.Query(context.Background(), Query{Catalog: remoteID, Start: start, End: start.AddDate(0, 0, 2), Bounds: bounds})
	require.NoError(t, err)
	require.Equal(t, 1, collection.Len())
	assert.Equal(t, start.AddDate(0, 0, 1), collection.Metadata()[0].Time)
}

func TestCalculatePixels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 37, calculatePixels(0.01, 30))
	assert.Equal(t, 1, calculatePixels(0, 30))
	assert.Equal(t, maxRequestPixels, calculatePixels(10, 10))
}

func TestEvalscript(t *testing.T) {
	t.Parallel()

	def := Definition{Bands: []Band{{"B4", "B04"}, {"B5", "B05"}}}
	script := evalscript(def)
	assert.True(t, strings.HasPrefix(script, "//VERSION=3"))
	assert.Contains(t, script, `input: ["B04", "B05", "dataMask"]`)
	assert.Contains(t, script, "bands: 3")
	assert.Contains(t, script, "return [sample.B04, sample.B05, sample.dataMask];")

	def.Bands = append(def.Bands, Band{"QA_PIXEL", "BQA"})
	def.QABand = "QA_PIXEL"
	def.ReflectanceScale = 10000
	script = evalscript(def)
	assert.Contains(t, script, "return [sample.B04 * 10000, sample.B05 * 10000, sample.BQA, sample.dataMask];")
}

func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, Credentials{}.validate())
	assert.Error(t, Credentials{ClientIDs: []string{"a", "b"}, ClientSecrets: []string{"s"}, TokenURL: tokenURL}.validate())
	assert.NoError(t, Credentials{ClientIDs: []string{"a"}, ClientSecrets: []string{"s"}, TokenURL: tokenURL}.validate())
}

func TestCopernicusQueryFetchesDaysMissingOnDisk(t *testing.T) {
	t.Parallel()

	// the remote answers with a real two pixel scene
	fixture := NewGeoTIFFCatalog(t.TempDir(), nil)
	served := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	writeScene(t, fixture, served, []float64{21824, 21824}, []float64{1, 1})
	tiff, err := os.ReadFile(filepath.Join(fixture.Dir(landsatID), SceneName(landsatID, served)))
	require.NoError(t, err)

	ctx, transport := mockContext(t)
	transport.RegisterResponder(http.MethodPost, processURL, httpmock.NewBytesResponder(http.StatusOK, tiff))

	c := testCatalog(t, 1)
	c.Workers = 1
	def := landsat(t)
	bounds := testBounds(t)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	// an earlier, narrower run left day two in the catalog directory
	writeScene(t, fixture, start.AddDate(0, 0, 1), []float64{21824, 21824}, []float64{1, 1})
	cached := filepath.Join(fixture.Dir(landsatID), SceneName(landsatID, start.AddDate(0, 0, 1)))
	require.NoError(t, c.Cache.Set(c.Cache.GenerateKey(def.ID, bounds.Bound(), "2019-01-02"), sceneRecord{Path: cached}))

	collection, err := c.Query(ctx, Query{Catalog: remoteID, Start: start, End: start.AddDate(0, 0, 3), Bounds: bounds})
	require.NoError(t, err)
	assert.Equal(t, 3, collection.Len())
	assert.Equal(t, 2, transport.GetCallCountInfo()["POST "+processURL], "only days missing on disk are requested")
	assert.FileExists(t, filepath.Join(c.Store.Dir(remoteID), SceneName(remoteID, start)))
}
