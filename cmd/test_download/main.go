package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/greenness-mosaic/internal/catalog"
	"github.com/forest-guardian/greenness-mosaic/internal/properties"
)

func main() {
	// Hardcoded test parameters - modify these to test different scenarios
	asset := "Artemio_A"
	catalogID := "LANDSAT/LC08/C02/T1_L2"
	testDate := time.Date(2019, 7, 14, 0, 0, 0, 0, time.UTC)

	fmt.Println("=== Greenness Mosaic Test Scene Download ===")
	fmt.Printf("Asset: %s\n", asset)
	fmt.Printf("Catalog: %s\n", catalogID)
	fmt.Printf("Date: %s\n", testDate.Format("2006-01-02"))
	fmt.Println()

	if err := properties.Load("../../.env", ".env"); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
		fmt.Println("Make sure you have set the required environment variables:")
		fmt.Println("- COPERNICUS_CLIENT_ID")
		fmt.Println("- COPERNICUS_CLIENT_SECRET")
		fmt.Println("- COPERNICUS_TOKEN_URL")
		fmt.Println("- ROOT_PATH")
		fmt.Println()
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fmt.Printf("Loading geometry for asset '%s'...\n", asset)
	region, err := catalog.NewRegions(properties.GeoJSONPath()).Resolve(asset)
	if err != nil {
		log.Fatalf("Failed to get geometry: %v", err)
	}
	fmt.Println("✓ Geometry loaded successfully")

	store := catalog.NewGeoTIFFCatalog(properties.CatalogPath(), logger)
	remote := catalog.NewCopernicusCatalog(
		properties.CopernicusProcessURL(),
		catalog.Credentials{
			ClientIDs:     properties.CopernicusClientIDs(),
			ClientSecrets: properties.CopernicusClientSecrets(),
			TokenURL:      properties.CopernicusTokenURL(),
		},
		store,
		filepath.Join(properties.DataPath(), "cache", "scenes"),
		logger,
	)

	path, found, err := remote.FetchScene(context.Background(), catalogID, region, testDate)
	if err != nil {
		log.Fatalf("Failed to get scene: %v", err)
	}

	fmt.Printf("\n=== Results ===\n")
	if !found {
		fmt.Println("No scene was downloaded. This could mean:")
		fmt.Println("- No satellite data available for this date")
		fmt.Println("- All pixels were outside the acquisition footprint")
		return
	}

	grid, err := catalog.ReadGrid(path)
	if err != nil {
		log.Fatalf("Failed to read scene: %v", err)
	}
	fmt.Printf("Scene: %s (size: %dx%d)\n", path, grid.Width, grid.Height)
	fmt.Println("\n✓ Test completed successfully!")
}
