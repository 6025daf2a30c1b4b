// Package config loads client settings from a config file and EVERYTRIV_*
// environment variables and renders them as everytriv options.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/IsraelRub/EveryTriv-sub000"
)

// EnvPrefix is prepended to every environment variable, e.g. EVERYTRIV_BASE_URL.
const EnvPrefix = "EVERYTRIV"

// RetryConfig mirrors everytriv.RetryPolicy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Strategy    string        `mapstructure:"strategy"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// AuthConfig controls the token store and refresh endpoint.
type AuthConfig struct {
	TokenFile     string        `mapstructure:"token_file"`
	RefreshPath   string        `mapstructure:"refresh_path"`
	ProactiveSkew time.Duration `mapstructure:"proactive_skew"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Debug      bool   `mapstructure:"debug"`
}

// Config is the full set of file and environment settings.
type Config struct {
	BaseURL   string            `mapstructure:"base_url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Transport string            `mapstructure:"transport"`
	Headers   map[string]string `mapstructure:"headers"`
	Retry     RetryConfig       `mapstructure:"retry"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Log       LogConfig         `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	def := everytriv.DefaultRetryPolicy()

	v.SetDefault("base_url", "http://localhost:3001")
	v.SetDefault("timeout", "30s")
	v.SetDefault("transport", "http")

	v.SetDefault("retry.max_attempts", def.MaxAttempts)
	v.SetDefault("retry.base_delay", def.BaseDelay.String())
	v.SetDefault("retry.max_delay", def.MaxDelay.String())
	v.SetDefault("retry.strategy", def.Strategy.String())
	v.SetDefault("retry.multiplier", def.Multiplier)

	v.SetDefault("auth.token_file", "")
	v.SetDefault("auth.refresh_path", everytriv.DefaultRefreshPath)
	v.SetDefault("auth.proactive_skew", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.debug", false)
}

// Load reads configPath (or everytriv.yaml from the usual locations when
// empty), then applies EVERYTRIV_* environment overrides. A missing default
// config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("everytriv")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/everytriv")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the client options cannot check themselves.
func (c *Config) Validate() error {
	if _, ok := everytriv.ParseBackoffStrategy(c.Retry.Strategy); !ok {
		return errors.Errorf("unknown retry strategy %q", c.Retry.Strategy)
	}
	switch c.Transport {
	case "http", "resty":
	default:
		return errors.Errorf("unknown transport %q", c.Transport)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() everytriv.RetryPolicy {
	strategy, _ := everytriv.ParseBackoffStrategy(c.Retry.Strategy)
	return everytriv.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Strategy:    strategy,
		Multiplier:  c.Retry.Multiplier,
	}
}

// Options renders the client options for this config. Token store, transport
// and logger are supplied by the caller because they own resources.
func (c *Config) Options() []everytriv.Option {
	opts := []everytriv.Option{
		everytriv.WithBaseURL(c.BaseURL),
		everytriv.WithTimeout(c.Timeout),
		everytriv.WithRetryPolicy(c.RetryPolicy()),
		everytriv.WithRefreshPath(c.Auth.RefreshPath),
	}
	for key, value := range c.Headers {
		opts = append(opts, everytriv.WithDefaultHeader(key, value))
	}
	if c.Auth.ProactiveSkew > 0 {
		opts = append(opts, everytriv.WithProactiveRefresh(c.Auth.ProactiveSkew))
	}
	return opts
}
