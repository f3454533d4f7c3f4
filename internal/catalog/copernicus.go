package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/cache"
	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/raster"
	"github.com/forest-guardian/greenness-mosaic/internal/utils"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
)

// The process API caps output rasters at 2500 pixels per side.
const maxRequestPixels = 2500

var errUnauthorized = errors.New("unauthorized access, check your client ID and secret")

type Credentials struct {
	ClientIDs     []string
	ClientSecrets []string
	TokenURL      string
}

func (c Credentials) validate() error {
	if len(c.ClientIDs) == 0 || len(c.ClientSecrets) == 0 || c.TokenURL == "" {
		return errors.New("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	}
	if len(c.ClientIDs) != len(c.ClientSecrets) {
		return errors.New("mismatched number of client IDs and secrets")
	}
	return nil
}

type sceneRecord struct {
	Path  string `json:"path"`
	Empty bool   `json:"empty"`
}

// CopernicusCatalog downloads one scene per acquisition window from the
// Copernicus Data Space process API and stores it in Store's layout.
type CopernicusCatalog struct {
	ProcessURL   string
	Credentials  Credentials
	Store        *GeoTIFFCatalog
	Cache        *cache.FileCache[sceneRecord]
	IntervalDays int
	Workers      int
	Retries      int
	RetryDelay   time.Duration
	Logger       *slog.Logger
}

func NewCopernicusCatalog(processURL string, creds Credentials, store *GeoTIFFCatalog, cacheDir string, logger *slog.Logger) *CopernicusCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CopernicusCatalog{
		ProcessURL:   processURL,
		Credentials:  creds,
		Store:        store,
		Cache:        cache.NewFileCache[sceneRecord](cacheDir),
		IntervalDays: 1,
		Workers:      4,
		Retries:      10,
		RetryDelay:   5 * time.Second,
		Logger:       logger,
	}
}

func (c *CopernicusCatalog) Query(ctx context.Context, q Query) (*pipeline.Collection, error) {
	def, ok := Lookup(q.Catalog)
	if !ok || !def.Remote() {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, q.Catalog)
	}
	if q.Bounds == nil {
		return nil, errors.New("copernicus query needs a bounding geometry")
	}
	if err := c.Credentials.validate(); err != nil {
		return nil, err
	}
	interval := max(c.IntervalDays, 1)

	var (
		mu     sync.Mutex
		scenes = make(map[time.Time]string)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Workers, 1))
	for date := q.Start; date.Before(q.End); date = date.AddDate(0, 0, interval) {
		date := date
		g.Go(func() error {
			path, found, err := c.fetchScene(gctx, def, q.Bounds, date)
			if err != nil {
				return fmt.Errorf("scene %s: %w", date.Format(dateLayout), err)
			}
			if found {
				mu.Lock()
				scenes[date] = path
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fallback := append(def.BandNames(), DataMaskBand)
	items := make([]pipeline.Item, 0, len(scenes))
	for _, date := range utils.GetSortedKeys(scenes, true) {
		path := scenes[date]
		meta := raster.Metadata{ID: strings.TrimSuffix(SceneName(def.ID, date), ".tif"), Time: date, Footprint: q.Bounds.Bound()}
		items = append(items, pipeline.NewItem(meta, func(context.Context) (*raster.Image, error) {
			return ReadGeoTIFF(path, meta, fallback)
		}))
	}
	c.Logger.Info("copernicus query finished", "catalog", def.ID, "scenes", len(items))
	return q.Plan().Apply(pipeline.NewCollection(items...)), nil
}

// FetchScene downloads the scene for one day into the store. found is
// false when the day has no data over bounds.
func (c *CopernicusCatalog) FetchScene(ctx context.Context, catalogID string, bounds *raster.Geometry, date time.Time) (string, bool, error) {
	def, ok := Lookup(catalogID)
	if !ok || !def.Remote() {
		return "", false, fmt.Errorf("%w: %s", ErrCatalogNotFound, catalogID)
	}
	if err := c.Credentials.validate(); err != nil {
		return "", false, err
	}
	return c.fetchScene(ctx, def, bounds, date)
}

func (c *CopernicusCatalog) fetchScene(ctx context.Context, def Definition, bounds *raster.Geometry, date time.Time) (string, bool, error) {
	key := c.Cache.GenerateKey(def.ID, bounds.Bound(), date.Format(dateLayout))
	if record, ok := c.Cache.Get(key); ok {
		if record.Empty {
			return "", false, nil
		}
		if _, err := os.Stat(record.Path); err == nil {
			return record.Path, true, nil
		}
	}

	end := date.Add(time.Hour*23 + time.Minute*59 + time.Second*59)
	imageBytes, err := c.requestImage(ctx, def, date, end, bounds)
	if err != nil {
		return "", false, err
	}

	dir := c.Store.Dir(def.ID)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", false, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, SceneName(def.ID, date))
	if err := os.WriteFile(path, imageBytes, 0644); err != nil {
		return "", false, fmt.Errorf("failed to write image file: %w", err)
	}

	empty, err := isEmptyScene(path, append(def.BandNames(), DataMaskBand))
	if err != nil {
		return "", false, err
	}
	if empty {
		if err := os.Remove(path); err != nil {
			c.Logger.Warn("failed to delete empty scene", "path", path, "error", err)
		}
		if err := c.Cache.Set(key, sceneRecord{Empty: true}); err != nil {
			c.Logger.Warn("failed to cache empty scene", "date", date.Format(dateLayout), "error", err)
		}
		return "", false, nil
	}

	if err := c.Cache.Set(key, sceneRecord{Path: path}); err != nil {
		c.Logger.Warn("failed to cache scene", "date", date.Format(dateLayout), "error", err)
	}
	return path, true, nil
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := int(math.Round(distance * (raster.MetersPerDegree / resolution)))
	return min(max(pixels, 1), maxRequestPixels)
}

// evalscript returns the catalog bands followed by dataMask. Bands other
// than the QA band are multiplied by the reflectance scale.
func evalscript(def Definition) string {
	inputs := append(def.RemoteBandNames(), DataMaskBand)
	quoted := make([]string, len(inputs))
	samples := make([]string, len(inputs))
	for i, band := range inputs {
		quoted[i] = fmt.Sprintf("%q", band)
		samples[i] = "sample." + band
		if i < len(def.Bands) && def.Bands[i].Name != def.QABand && def.ReflectanceScale != 0 {
			samples[i] += " * " + strconv.FormatFloat(def.ReflectanceScale, 'f', -1, 64)
		}
	}
	return fmt.Sprintf(`//VERSION=3
function setup() {
  return {
    input: [%s],
    output: {
      id: "default",
      bands: %d,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function evaluatePixel(sample) {
  return [%s];
}
`, strings.Join(quoted, ", "), len(inputs), strings.Join(samples, ", "))
}

func (c *CopernicusCatalog) requestPayload(def Definition, start, end time.Time, bounds *raster.Geometry) ([]byte, error) {
	bbox := bounds.Bound()
	width := calculatePixels(bbox.Max[0]-bbox.Min[0], def.Resolution)
	height := calculatePixels(bbox.Max[1]-bbox.Min[1], def.Resolution)

	payload := map[string]any{
		"input": map[string]any{
			"bounds": map[string]any{
				"geometry": geojson.NewGeometry(bounds.Orb()),
			},
			"data": []map[string]any{
				{
					"dataFilter": map[string]any{
						"timeRange": map[string]string{
							"from": start.Format(time.RFC3339),
							"to":   end.Format(time.RFC3339),
						},
					},
					"type": def.Collection,
				},
			},
		},
		"output": map[string]any{
			"width":  width,
			"height": height,
			"responses": []map[string]any{
				{
					"identifier": "default",
					"format":     map[string]string{"type": "image/tiff"},
				},
			},
		},
		"evalscript": evalscript(def),
		"mosaicking": "mostRecent",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return body, nil
}

// requestImage tries each credential pair in turn, retrying non-200
// responses, and gives up immediately on a 403.
func (c *CopernicusCatalog) requestImage(ctx context.Context, def Definition, start, end time.Time, bounds *raster.Geometry) ([]byte, error) {
	requestBody, err := c.requestPayload(def, start, end, bounds)
	if err != nil {
		return nil, err
	}

	retries := max(c.Retries, 1)
	for i, clientID := range c.Credentials.ClientIDs {
		config := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: c.Credentials.ClientSecrets[i],
			TokenURL:     c.Credentials.TokenURL,
		}
		httpClient := config.Client(ctx)

		var content []byte
		content, err = c.post(ctx, httpClient, requestBody, retries)
		if err == nil {
			return content, nil
		}
		c.Logger.Warn("copernicus credential failed", "client", i, "error", err)
	}
	return nil, err
}

func (c *CopernicusCatalog) post(ctx context.Context, httpClient *http.Client, body []byte, retries int) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ProcessURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		response, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.Logger.Debug("copernicus request failed", "attempt", attempt, "error", err)
		} else {
			content, readErr := io.ReadAll(response.Body)
			response.Body.Close()
			switch {
			case response.StatusCode == http.StatusOK && readErr == nil:
				return content, nil
			case response.StatusCode == http.StatusForbidden || strings.Contains(string(content), "403"):
				return nil, errUnauthorized
			case readErr != nil:
				lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			default:
				lastErr = fmt.Errorf("status %d: %s", response.StatusCode, content)
			}
			c.Logger.Debug("copernicus request failed", "attempt", attempt, "error", lastErr)
		}

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RetryDelay):
		}
	}
	return nil, fmt.Errorf("failed to request image after %d attempts: %w", retries, lastErr)
}
