package delivery

import (
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/cloudmask"
	"github.com/forest-guardian/greenness-mosaic/internal/index"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/forest-guardian/greenness-mosaic/internal/visualization"
)

// Config describes one composite run.
type Config struct {
	AssetID   string
	Catalog   string
	Start     time.Time
	End       time.Time
	QABand    string
	ClearCode int
	NIRBand   string
	RedBand   string
	IndexBand string
	// Scale is the time series sampling distance in metres.
	Scale       float64
	ChartTitle  string
	RegionLayer string
	RegionColor string
	IndexVis    visualization.Visualization
	TrueColor   visualization.Visualization
	Inspection  visualization.Visualization
}

func DefaultConfig() Config {
	trueColorBands := []string{"B4", "B3", "B2"}
	return Config{
		AssetID:     "Artemio_A",
		Catalog:     "LANDSAT/LC08/C01/T1_SR",
		Start:       time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		QABand:      cloudmask.DefaultQABand,
		ClearCode:   cloudmask.ClearCode,
		NIRBand:     index.LandsatNIR,
		RedBand:     index.LandsatRed,
		IndexBand:   index.NDVIBand,
		Scale:       series.DefaultScale,
		ChartTitle:  "NDVI Band Mean Landsat 8 Artemio CLASS A",
		RegionLayer: "Class G",
		RegionColor: "FF0000",
		IndexVis: visualization.Visualization{
			Bands:   []string{index.NDVIBand},
			Min:     0,
			Max:     1,
			Palette: visualization.NDVIPalette,
		},
		TrueColor:  visualization.Visualization{Bands: trueColorBands, Min: 0, Max: 2000},
		Inspection: visualization.Visualization{Bands: trueColorBands, Min: 150, Max: 2000},
	}
}
