package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SourceConfig drives the paginated external-source fetch.
type SourceConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	PageSize            int    `mapstructure:"page_size"`
	MaxPages            int    `mapstructure:"max_pages"`
	PagePauseMS         int    `mapstructure:"page_pause_ms"`
	WatermarkMarginDays int    `mapstructure:"watermark_margin_days"`
	LookbackMonths      int    `mapstructure:"lookback_months"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

func (c SourceConfig) PagePause() time.Duration {
	return time.Duration(c.PagePauseMS) * time.Millisecond
}

func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type GeocoderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	PauseEvery     int    `mapstructure:"pause_every"`
	PauseMS        int    `mapstructure:"pause_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c GeocoderConfig) Pause() time.Duration {
	return time.Duration(c.PauseMS) * time.Millisecond
}

func (c GeocoderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SummaryConfig struct {
	Model             string `mapstructure:"model"`
	APIKey            string `mapstructure:"api_key"`
	TTLDays           int    `mapstructure:"ttl_days"`
	MaxThemes         int    `mapstructure:"max_themes"`
	RecentInspections int    `mapstructure:"recent_inspections"`
}

func (c SummaryConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	// Configuration problems are fatal before any work starts; mid-run
	// failures are handled per unit of work instead.
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("source_base_url", cfg.Source.BaseURL),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Source.BaseURL == "" {
		return errors.New("source.base_url is required")
	}
	if cfg.Source.PageSize <= 0 {
		return errors.New("source.page_size must be positive")
	}
	if cfg.Source.MaxPages <= 0 {
		return errors.New("source.max_pages must be positive")
	}
	if cfg.Geocoder.BaseURL == "" {
		return errors.New("geocoder.base_url is required")
	}
	if cfg.Summary.TTLDays <= 0 {
		return errors.New("summary.ttl_days must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dinesafe")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/dinesafe.sqlite")

	v.SetDefault("source.base_url", "https://data.cityofchicago.org/resource/4ijn-s7e5.json")
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.max_pages", 100)
	v.SetDefault("source.page_pause_ms", 500)
	v.SetDefault("source.watermark_margin_days", 7)
	v.SetDefault("source.lookback_months", 36)
	v.SetDefault("source.timeout_seconds", 30)

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "dinesafe-sync/1.0")
	v.SetDefault("geocoder.pause_every", 10)
	v.SetDefault("geocoder.pause_ms", 1000)
	v.SetDefault("geocoder.timeout_seconds", 15)

	v.SetDefault("summary.model", "gpt-4o-mini")
	v.SetDefault("summary.api_key", "")
	v.SetDefault("summary.ttl_days", 7)
	v.SetDefault("summary.max_themes", 4)
	v.SetDefault("summary.recent_inspections", 3)

	v.SetDefault("server.addr", ":8080")
}
