package properties

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

var v = newViper()

func newViper() *viper.Viper {
	cfg := viper.New()
	cfg.AutomaticEnv()
	cfg.SetDefault("ROOT_PATH", ".")
	cfg.SetDefault("LOG_LEVEL", "info")
	cfg.SetDefault("COPERNICUS_PROCESS_URL", DefaultProcessURL)
	cfg.SetDefault("DOWNLOAD_WORKERS", 4)
	cfg.SetDefault("RENDER_HIDDEN", false)
	return cfg
}

// Load reads the first .env file found among paths into the environment.
// Missing files are not an error: the environment may already be set.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{"../.env", ".env"}
	}
	var err error
	for _, path := range paths {
		if err = godotenv.Load(path); err == nil {
			return nil
		}
	}
	return err
}

// BindFlags lets command line flags override environment values. Flag
// names map to keys by upper-casing and replacing '-' with '_'.
func BindFlags(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), f); bindErr != nil {
			err = bindErr
		}
	})
	return err
}

func Set(key string, value any) {
	v.Set(key, value)
}

func RootPath() string {
	return v.GetString("ROOT_PATH")
}

func DataPath() string {
	return filepath.Join(RootPath(), "data")
}

func GeoJSONPath() string {
	return filepath.Join(DataPath(), "geojsons")
}

func CatalogPath() string {
	return filepath.Join(DataPath(), "catalogs")
}

func ResultPath() string {
	return filepath.Join(DataPath(), "result")
}

func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func CopernicusClientIDs() []string {
	return splitList(v.GetString("COPERNICUS_CLIENT_ID"))
}

func CopernicusClientSecrets() []string {
	return splitList(v.GetString("COPERNICUS_CLIENT_SECRET"))
}

func CopernicusTokenURL() string {
	return v.GetString("COPERNICUS_TOKEN_URL")
}

func CopernicusProcessURL() string {
	return v.GetString("COPERNICUS_PROCESS_URL")
}

func DownloadWorkers() int {
	return v.GetInt("DOWNLOAD_WORKERS")
}

func RenderHidden() bool {
	return v.GetBool("RENDER_HIDDEN")
}

func DiscordErrorNotificationUrl() string {
	return v.GetString("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return v.GetString("DISCORD_SUCCESS_NOTIFICATION_URL")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
