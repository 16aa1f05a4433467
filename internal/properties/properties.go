package properties

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the whole configuration of a run. Relative paths are resolved against RootPath.
type Config struct {
	RootPath    string `yaml:"root_path" validate:"required"`
	AOIPath     string `yaml:"aoi_path" validate:"required"`
	AOIName     string `yaml:"aoi_name"`
	StatePath   string `yaml:"state_path" validate:"required"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
	HistoryPath string `yaml:"history_path"`
	ImageDir    string `yaml:"image_dir"`
	CacheDir    string `yaml:"cache_dir"`
	Basemap     string `yaml:"basemap" validate:"required"`

	Copernicus CopernicusConfig `yaml:"copernicus"`
	Discord    DiscordConfig    `yaml:"discord"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

type CopernicusConfig struct {
	BaseURL       string  `yaml:"base_url" validate:"required,url"`
	TokenURL      string  `yaml:"token_url" validate:"required,url"`
	ClientID      string  `yaml:"client_id"`
	ClientSecret  string  `yaml:"client_secret"`
	Collection    string  `yaml:"collection" validate:"required"`
	MaxCloudCover float64 `yaml:"max_cloud_cover" validate:"gt=0,lte=100"`
}

type DiscordConfig struct {
	ErrorURL   string `yaml:"error_url" validate:"omitempty,url"`
	SuccessURL string `yaml:"success_url" validate:"omitempty,url"`
}

type ScheduleConfig struct {
	Cron       string   `yaml:"cron" validate:"required"`
	Timeframes []string `yaml:"timeframes" validate:"min=1"`
}

// ClientIDs splits the comma separated client id list.
func (c CopernicusConfig) ClientIDs() []string { return splitList(c.ClientID) }

// ClientSecrets splits the comma separated client secret list.
func (c CopernicusConfig) ClientSecrets() []string { return splitList(c.ClientSecret) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Default() *Config {
	return &Config{
		RootPath:  ".",
		AOIPath:   "data/aoi.geojson",
		StatePath: "data/data.json",
		OutputDir: "data/result",
		ImageDir:  "data/images",
		CacheDir:  "data/cache/tiles",
		Basemap:   "google_satellite",
		Copernicus: CopernicusConfig{
			BaseURL:       "https://sh.dataspace.copernicus.eu",
			TokenURL:      "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
			Collection:    "sentinel-2-l2a",
			MaxCloudCover: 1,
		},
		Schedule: ScheduleConfig{
			Cron:       "0 6 * * *",
			Timeframes: []string{"two_weeks", "one_year"},
		},
	}
}

// LoadEnv reads .env files into the process environment. Missing files are ignored and
// variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at path and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ROOT_PATH":                        &c.RootPath,
		"AOI_PATH":                         &c.AOIPath,
		"AOI_NAME":                         &c.AOIName,
		"STATE_PATH":                       &c.StatePath,
		"OUTPUT_DIR":                       &c.OutputDir,
		"HISTORY_PATH":                     &c.HistoryPath,
		"IMAGE_DIR":                        &c.ImageDir,
		"CACHE_DIR":                        &c.CacheDir,
		"BASEMAP":                          &c.Basemap,
		"COPERNICUS_BASE_URL":              &c.Copernicus.BaseURL,
		"COPERNICUS_TOKEN_URL":             &c.Copernicus.TokenURL,
		"COPERNICUS_CLIENT_ID":             &c.Copernicus.ClientID,
		"COPERNICUS_CLIENT_SECRET":         &c.Copernicus.ClientSecret,
		"COPERNICUS_COLLECTION":            &c.Copernicus.Collection,
		"DISCORD_ERROR_NOTIFICATION_URL":   &c.Discord.ErrorURL,
		"DISCORD_SUCCESS_NOTIFICATION_URL": &c.Discord.SuccessURL,
		"SCHEDULE_CRON":                    &c.Schedule.Cron,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("COPERNICUS_MAX_CLOUD_COVER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COPERNICUS_MAX_CLOUD_COVER %q: %w", v, err)
		}
		c.Copernicus.MaxCloudCover = f
	}
	if v := os.Getenv("SCHEDULE_TIMEFRAMES"); v != "" {
		c.Schedule.Timeframes = splitList(v)
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.RootPath == "" {
		c.RootPath = "."
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(c.OutputDir, "history.csv")
	}
	if c.AOIName == "" {
		c.AOIName = strings.TrimSuffix(filepath.Base(c.AOIPath), filepath.Ext(c.AOIPath))
	}
	for _, p := range []*string{&c.AOIPath, &c.StatePath, &c.OutputDir, &c.HistoryPath, &c.ImageDir, &c.CacheDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.RootPath, *p)
		}
	}
}

// ReportPath is where the PDF of a timeframe is written.
func (c *Config) ReportPath(timeframe string) string {
	return filepath.Join(c.OutputDir, timeframe, "report.pdf")
}

// MapPath is where the rendered map of a timeframe is written.
func (c *Config) MapPath(timeframe string) string {
	return filepath.Join(c.OutputDir, timeframe, "growth_decline.jpg")
}

// SummaryPath is where the GeoJSON summary of a timeframe is written.
func (c *Config) SummaryPath(timeframe string) string {
	return filepath.Join(c.OutputDir, timeframe, "summary.geojson")
}
