// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trackless/cred1/internal/score"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Data         DataConfig         `yaml:"data" mapstructure:"data"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Tranco       TrancoConfig       `yaml:"tranco" mapstructure:"tranco"`
	Google       GoogleConfig       `yaml:"google" mapstructure:"google"`
	Score        ScoreConfig        `yaml:"score" mapstructure:"score"`
	Enrich       EnrichConfig       `yaml:"enrich" mapstructure:"enrich"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Snapshot    bool   `yaml:"snapshot" mapstructure:"snapshot"`
}

// DataConfig sets where raw downloads and built datasets live.
type DataConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// SourcesConfig holds the upstream list URLs.
type SourcesConfig struct {
	OpenSourcesURL string `yaml:"opensources_url" mapstructure:"opensources_url"`
	IffyURL        string `yaml:"iffy_url" mapstructure:"iffy_url"`
}

// TrancoConfig configures the popularity list download.
type TrancoConfig struct {
	ListURL       string `yaml:"list_url" mapstructure:"list_url"`
	CacheMaxHours int    `yaml:"cache_max_hours" mapstructure:"cache_max_hours"`
}

// GoogleConfig holds the shared key for the Google APIs.
type GoogleConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ScoreConfig configures the composite scorer.
type ScoreConfig struct {
	Weights     score.Weights `yaml:"weights" mapstructure:"weights"`
	OtherPolicy string        `yaml:"other_policy" mapstructure:"other_policy"`
}

// EnrichConfig configures the enrichment steps.
type EnrichConfig struct {
	// ReferenceDate pins the "now" used for domain age (YYYY-MM-DD).
	// Empty means the build start date.
	ReferenceDate string `yaml:"reference_date" mapstructure:"reference_date"`
	Limit         int    `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the dataset HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ReferenceTime resolves the pinned date, defaulting to now truncated to day.
func (c EnrichConfig) ReferenceTime(now time.Time) (time.Time, error) {
	if c.ReferenceDate == "" {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", c.ReferenceDate)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse enrich.reference_date %q", c.ReferenceDate)
	}
	return t, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRED1")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cred1.db")
	v.SetDefault("store.snapshot", false)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.cache_dir", "data/cache")
	v.SetDefault("sources.opensources_url", "https://raw.githubusercontent.com/OpenSourcesGroup/opensources/master/sources/sources.json")
	v.SetDefault("sources.iffy_url", "https://iffy.news/index/iffy-news.csv")
	v.SetDefault("tranco.list_url", "https://tranco-list.eu/top-1m.csv.zip")
	v.SetDefault("tranco.cache_max_hours", 24)
	// Empty defaults register the keys so AutomaticEnv can bind them.
	v.SetDefault("google.api_key", "")
	v.SetDefault("enrich.reference_date", "")
	v.SetDefault("enrich.limit", 0)
	v.SetDefault("score.weights.cat", 0.50)
	v.SetDefault("score.weights.iffy", 0.15)
	v.SetDefault("score.weights.factcheck", 0.15)
	v.SetDefault("score.weights.tranco", 0.05)
	v.SetDefault("score.weights.age", 0.05)
	v.SetDefault("score.other_policy", "mixed")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Score.Weights.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
