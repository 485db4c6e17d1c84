package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"item-diversity/internal/catalog"
	"item-diversity/internal/collector"
	"item-diversity/internal/riot"

	"gopkg.in/yaml.v3"
)

// Extraction sources
const (
	SourcePostgres = "postgres"
	SourceFiles    = "files"
)

// DefaultSeeds are the initial accounts per platform
var DefaultSeeds = map[string]string{
	"euw1": "giantZorg#EUW",
	"na1":  "Hèrmés#NA1",
}

type Config struct {
	Region  string        `yaml:"region"`
	Seed    string        `yaml:"seed"`
	Window  WindowConfig  `yaml:"window"`
	Queues  []int         `yaml:"queues"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Extract ExtractConfig `yaml:"extract"`
	Storage StorageConfig `yaml:"storage"`
	Assets  AssetsConfig  `yaml:"assets"`
	Publish PublishConfig `yaml:"publish"`
	Discord DiscordConfig `yaml:"discord"`

	// Secrets only come from the environment
	RiotAPIKey string `yaml:"-"`
}

type WindowConfig struct {
	From     string `yaml:"from"` // YYYYMMDD, inclusive
	To       string `yaml:"to"`   // YYYYMMDD, inclusive
	Timezone string `yaml:"timezone"`
}

type CrawlConfig struct {
	MaxPlayers int `yaml:"max_players"`
	Workers    int `yaml:"workers"`
}

type ExtractConfig struct {
	Source  string `yaml:"source"` // postgres or files
	Workers int    `yaml:"workers"`
	Parquet bool   `yaml:"parquet"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	SpoolDir    string `yaml:"spool_dir"` // hot/warm/cold JSONL layout, empty disables the spool
	ColdDir     string `yaml:"cold_dir"`  // optional, defaults to spool_dir/cold
	OutputDir   string `yaml:"output_dir"`
}

type AssetsConfig struct {
	DataDragonVersion string `yaml:"data_dragon_version"`
	DataDragonURL     string `yaml:"data_dragon_url"`
	WikiURL           string `yaml:"wiki_url"`
	Icons             bool   `yaml:"icons"`
}

type PublishConfig struct {
	TursoURL   string `yaml:"turso_url"`
	TursoToken string `yaml:"-"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Default returns the configuration of the reference data collection
func Default() *Config {
	return &Config{
		Region: "euw1",
		Window: WindowConfig{
			From:     "20210428",
			To:       "20210511",
			Timezone: "Europe/Zurich",
		},
		Queues: append([]int(nil), collector.DefaultQueues...),
		Crawl: CrawlConfig{
			MaxPlayers: collector.DefaultMaxPlayers,
			Workers:    collector.DefaultWorkerCount,
		},
		Extract: ExtractConfig{
			Source:  SourcePostgres,
			Workers: 1,
		},
		Storage: StorageConfig{
			OutputDir: "data",
		},
		Assets: AssetsConfig{
			DataDragonVersion: catalog.DefaultVersion,
			DataDragonURL:     catalog.DefaultDataDragonURL,
			WikiURL:           catalog.DefaultWikiURL,
			Icons:             true,
		},
	}
}

// Load reads the YAML file at configPath over the defaults, then applies
// environment overrides. An empty path uses the defaults only.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.Region = strings.ToLower(config.Region)
	if config.Seed == "" {
		config.Seed = DefaultSeeds[config.Region]
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, names ...string) {
		for _, name := range names {
			// Remove quotes if present (from .env parsing)
			if v := strings.Trim(os.Getenv(name), "\""); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.RiotAPIKey, "RIOT_API_KEY", "RIOT-DEV-KEY")
	set(&c.Storage.DatabaseURL, "DATABASE_URL")
	set(&c.Storage.SpoolDir, "BLOB_STORAGE_PATH")
	set(&c.Storage.ColdDir, "COLD_STORAGE_PATH")
	set(&c.Publish.TursoURL, "TURSO_DATABASE_URL")
	set(&c.Publish.TursoToken, "TURSO_AUTH_TOKEN")
	set(&c.Discord.WebhookURL, "DISCORD_WEBHOOK")
}

// Validate checks the values a run cannot recover from
func (c *Config) Validate() error {
	var errs []error

	if _, err := riot.RegionFor(c.Region); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CollectionWindow(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Queues) == 0 {
		errs = append(errs, errors.New("queues must not be empty"))
	}
	if c.Crawl.Workers <= 0 || c.Extract.Workers <= 0 {
		errs = append(errs, errors.New("worker counts must be positive"))
	}
	if c.Crawl.MaxPlayers < 0 {
		errs = append(errs, errors.New("max_players must not be negative"))
	}
	switch c.Extract.Source {
	case SourcePostgres, SourceFiles:
	default:
		errs = append(errs, fmt.Errorf("unknown extract source %q", c.Extract.Source))
	}
	if c.Storage.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must be set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the timezone the window dates are read in
func (c *Config) Location() (*time.Location, error) {
	if c.Window.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Window.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Window.Timezone, err)
	}
	return loc, nil
}

// CollectionWindow returns the configured collection window
func (c *Config) CollectionWindow() (collector.Window, error) {
	loc, err := c.Location()
	if err != nil {
		return collector.Window{}, err
	}
	return collector.NewWindow(c.Window.From, c.Window.To, loc)
}
