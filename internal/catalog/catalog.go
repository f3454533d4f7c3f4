// Package catalog resolves region assets and image catalogs: GeoJSON
// regions, GeoTIFF directories and the Copernicus process API.
package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/platform"
)

var (
	ErrAssetNotFound   = platform.ErrAssetNotFound
	ErrCatalogNotFound = platform.ErrCatalogNotFound
)

type Query = platform.Query

type Source interface {
	Query(ctx context.Context, q Query) (*pipeline.Collection, error)
}

// Band maps a local band name to the name the Copernicus API uses.
type Band struct {
	Name   string
	Remote string
}

type Definition struct {
	ID string
	// Collection is the Copernicus data collection type. Catalogs without
	// one are only read from disk.
	Collection string
	// Resolution in metres, used to size remote requests.
	Resolution float64
	Bands      []Band
	// QABand holds the per-pixel quality code and ClearCode is the exact
	// value of a clear observation in it.
	QABand    string
	ClearCode int
	NIRBand   string
	RedBand   string
	// ReflectanceScale multiplies every non-QA band served remotely, so
	// reflectance in [0, 1] comes back in surface reflectance units.
	ReflectanceScale float64
}

func (d Definition) BandNames() []string {
	names := make([]string, len(d.Bands))
	for i, b := range d.Bands {
		names[i] = b.Name
	}
	return names
}

func (d Definition) RemoteBandNames() []string {
	names := make([]string, len(d.Bands))
	for i, b := range d.Bands {
		names[i] = b.Remote
	}
	return names
}

const DataMaskBand = "dataMask"

var definitions = map[string]Definition{
	// Collection 1 surface reflectance, pixel_qa 322 is clear land.
	"LANDSAT/LC08/C01/T1_SR": {
		ID:         "LANDSAT/LC08/C01/T1_SR",
		Resolution: 30,
		Bands: []Band{
			{"B1", ""}, {"B2", ""}, {"B3", ""}, {"B4", ""},
			{"B5", ""}, {"B6", ""}, {"B7", ""}, {"pixel_qa", ""},
		},
		QABand:    "pixel_qa",
		ClearCode: 322,
		NIRBand:   "B5",
		RedBand:   "B4",
	},
	// Collection 2 level 2, QA_PIXEL 21824 is clear land.
	"LANDSAT/LC08/C02/T1_L2": {
		ID:         "LANDSAT/LC08/C02/T1_L2",
		Collection: "landsat-ot-l2",
		Resolution: 30,
		Bands: []Band{
			{"B1", "B01"}, {"B2", "B02"}, {"B3", "B03"}, {"B4", "B04"},
			{"B5", "B05"}, {"B6", "B06"}, {"B7", "B07"}, {"QA_PIXEL", "BQA"},
		},
		QABand:           "QA_PIXEL",
		ClearCode:        21824,
		NIRBand:          "B5",
		RedBand:          "B4",
		ReflectanceScale: 10000,
	},
	// Scene classification 4 is vegetation.
	"COPERNICUS/S2_SR": {
		ID:         "COPERNICUS/S2_SR",
		Collection: "sentinel-2-l2a",
		Resolution: 10,
		Bands: []Band{
			{"B2", "B02"}, {"B3", "B03"}, {"B4", "B04"}, {"B5", "B05"},
			{"B6", "B06"}, {"B8", "B08"}, {"B11", "B11"}, {"SCL", "SCL"},
		},
		QABand:           "SCL",
		ClearCode:        4,
		NIRBand:          "B8",
		RedBand:          "B4",
		ReflectanceScale: 10000,
	},
}

// Remote reports whether the catalog can be downloaded from Copernicus.
func (d Definition) Remote() bool {
	return d.Collection != ""
}

func Lookup(id string) (Definition, bool) {
	def, ok := definitions[id]
	return def, ok
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeID turns a catalog id into a directory name.
func SanitizeID(id string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(id, "_"), "_")
}
