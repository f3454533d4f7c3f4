package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/greenness-mosaic/internal/catalog"
	"github.com/forest-guardian/greenness-mosaic/internal/delivery"
	"github.com/forest-guardian/greenness-mosaic/internal/notification"
	"github.com/forest-guardian/greenness-mosaic/internal/pipeline"
	"github.com/forest-guardian/greenness-mosaic/internal/platform/local"
	"github.com/forest-guardian/greenness-mosaic/internal/properties"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var logger = slog.Default()

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "greenness-mosaic",
		Short:         "Cloud free NDVI composites and time series for a region",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("root-path", "", "Project root holding the data folder")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int("download-workers", 0, "Concurrent scene downloads and image loads")
	rootCmd.PersistentFlags().Bool("render-hidden", false, "Also write layers that are hidden by default")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := properties.Load(); err != nil {
			bannercolor.Yellow("No .env file loaded: %s", err.Error())
		}
		if err := properties.BindFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: properties.LogLevel()}))
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(runCommand(), planCommand(), assetsCommand())
	return rootCmd
}

type runFlags struct {
	cfg   delivery.Config
	start string
	end   string
}

func setupRunFlags(cmd *cobra.Command, f *runFlags) {
	f.cfg = delivery.DefaultConfig()
	f.start = f.cfg.Start.Format(dateLayout)
	f.end = f.cfg.End.Format(dateLayout)

	cmd.Flags().StringVarP(&f.cfg.AssetID, "asset", "a", f.cfg.AssetID, "Region asset: <region> or <region>/<plot>")
	cmd.Flags().StringVarP(&f.cfg.Catalog, "catalog", "c", f.cfg.Catalog, "Image catalog id")
	cmd.Flags().StringVar(&f.start, "start", f.start, "First acquisition date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", f.end, "Last acquisition date, exclusive (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.cfg.Scale, "scale", f.cfg.Scale, "Time series sampling distance in metres")
	cmd.Flags().StringVar(&f.cfg.ChartTitle, "title", f.cfg.ChartTitle, "Chart title")
}

func (f *runFlags) config() (delivery.Config, error) {
	start, err := time.Parse(dateLayout, f.start)
	if err != nil {
		return delivery.Config{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(dateLayout, f.end)
	if err != nil {
		return delivery.Config{}, fmt.Errorf("invalid end date: %w", err)
	}
	if !start.Before(end) {
		return delivery.Config{}, fmt.Errorf("start date %s is not before end date %s", f.start, f.end)
	}
	cfg := f.cfg
	cfg.Start, cfg.End = start, end
	if def, ok := catalog.Lookup(cfg.Catalog); ok {
		cfg.QABand, cfg.ClearCode = def.QABand, def.ClearCode
		cfg.NIRBand, cfg.RedBand = def.NIRBand, def.RedBand
	}
	return cfg, nil
}

func runCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the NDVI composite, layers and time series chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()
			cfg, err := flags.config()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := delivery.RunComposite(ctx, newPlatform(), cfg, newExecutor(), logger)
			if err != nil {
				bannercolor.Red("\nError building composite: %s", err.Error())
				if notifyErr := notification.SendDiscordErrorNotification(fmt.Sprintf("Greenness mosaic\n\nError building composite for %s: %s", cfg.AssetID, err.Error())); notifyErr != nil {
					logger.Warn("failed to send notification", "error", notifyErr)
				}
				return err
			}

			message := fmt.Sprintf("Composite for %s built from %d images.\nResults located at: %s", cfg.AssetID, result.Images, properties.ResultPath())
			bannercolor.Green("\n%s", message)
			if err := notification.SendDiscordSuccessNotification("Greenness mosaic\n\n" + message); err != nil {
				logger.Warn("failed to send notification", "error", err)
			}
			return nil
		},
	}
	setupRunFlags(cmd, &flags)
	return cmd
}

func planCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the pipeline stages without reading any image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			for _, line := range delivery.Describe(cfg) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	setupRunFlags(cmd, &flags)
	return cmd
}

func assetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List regions and plots available as assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			bannercolor.Yellow("To add a region, add its '.geojson' file at '%s'.", properties.GeoJSONPath())
			bannercolor.Yellow("Plots are features carrying a '%s' property.\n", catalog.PlotIDProperty)
			ids, err := catalog.NewRegions(properties.GeoJSONPath()).List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				bannercolor.Green("- %s", id)
			}
			return nil
		},
	}
}

func copernicusCredentials() catalog.Credentials {
	return catalog.Credentials{
		ClientIDs:     properties.CopernicusClientIDs(),
		ClientSecrets: properties.CopernicusClientSecrets(),
		TokenURL:      properties.CopernicusTokenURL(),
	}
}

func newCopernicus(store *catalog.GeoTIFFCatalog) *catalog.CopernicusCatalog {
	remote := catalog.NewCopernicusCatalog(
		properties.CopernicusProcessURL(),
		copernicusCredentials(),
		store,
		filepath.Join(properties.DataPath(), "cache", "scenes"),
		logger,
	)
	remote.Workers = properties.DownloadWorkers()
	return remote
}

// newPlatform asks Copernicus first when credentials are configured, so
// days missing on disk are downloaded while its scene cache skips the rest.
// Catalogs Copernicus does not serve are read from disk.
func newPlatform() *local.Platform {
	store := catalog.NewGeoTIFFCatalog(properties.CatalogPath(), logger)
	var sources []catalog.Source
	if len(properties.CopernicusClientIDs()) > 0 {
		sources = append(sources, newCopernicus(store))
	}
	sources = append(sources, store)
	return &local.Platform{
		Regions:      catalog.NewRegions(properties.GeoJSONPath()),
		Sources:      sources,
		ResultDir:    properties.ResultPath(),
		RenderHidden: properties.RenderHidden(),
		Logger:       logger,
	}
}

func newExecutor() pipeline.Executor {
	return pipeline.Pool{
		Workers:     properties.DownloadWorkers(),
		Progress:    true,
		Description: "loading images",
	}
}

