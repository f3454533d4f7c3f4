package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/greenness-mosaic/internal/series"
	"github.com/gocarina/gocsv"
)

const (
	chartWidth  = 900
	chartHeight = 420
	chartMargin = 60.0
)

// valueRange returns the y axis range of the valid points, padded.
func valueRange(s series.Series) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s {
		if !p.Valid {
			continue
		}
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if math.IsInf(lo, 1) {
		return 0, 1, false
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad, true
}

func timeRange(s series.Series) (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	start, end := s[0].Time, s[len(s)-1].Time
	if !end.After(start) {
		end = start.Add(24 * time.Hour)
	}
	return start, end
}

// ChartPNG draws s as a line chart. Invalid points break the line.
func ChartPNG(s series.Series, title, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	left, right := chartMargin, float64(chartWidth)-chartMargin/2
	top, bottom := chartMargin, float64(chartHeight)-chartMargin

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, float64(chartWidth)/2, chartMargin/2, 0.5, 0.5)
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, bottom)
	dc.DrawLine(left, bottom, right, bottom)
	dc.Stroke()

	lo, hi, _ := valueRange(s)
	start, end := timeRange(s)
	span := end.Sub(start).Seconds()
	px := func(t time.Time) float64 {
		if span == 0 {
			return left
		}
		return left + (right-left)*t.Sub(start).Seconds()/span
	}
	py := func(v float64) float64 {
		return bottom - (bottom-top)*(v-lo)/(hi-lo)
	}

	dc.SetRGB(0.6, 0.6, 0.6)
	for i := 0; i < 5; i++ {
		v := lo + (hi-lo)*float64(i)/4
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", v), left-6, py(v), 1, 0.5)
	}
	if len(s) > 0 {
		dc.DrawStringAnchored(start.Format("2006-01-02"), left, bottom+16, 0, 0.5)
		dc.DrawStringAnchored(end.Format("2006-01-02"), right, bottom+16, 1, 0.5)
	}

	dc.SetRGB(0.13, 0.45, 0.0)
	dc.SetLineWidth(1.5)
	drawing := false
	for _, p := range s {
		if !p.Valid {
			if drawing {
				dc.Stroke()
			}
			drawing = false
			continue
		}
		x, y := px(p.Time), py(p.Value)
		if drawing {
			dc.LineTo(x, y)
		} else {
			dc.MoveTo(x, y)
			drawing = true
		}
	}
	if drawing {
		dc.Stroke()
	}
	for _, p := range s {
		if p.Valid {
			dc.DrawCircle(px(p.Time), py(p.Value), 2.5)
		}
	}
	dc.Fill()

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

// WriteSeriesCSV writes one row per point.
func WriteSeriesCSV(s series.Series, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	rows := []series.Point(s)
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("error encoding CSV file: %w", err)
	}
	return nil
}
