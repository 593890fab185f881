// Package config loads plugwire settings from an optional YAML file and
// PLUGWIRE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdelaire/plugwire/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. PLUGWIRE_LOG_LEVEL.
const EnvPrefix = "PLUGWIRE"

type Telegram struct {
	Token           string
	APIEndpoint     string
	PollTimeout     time.Duration
	RetryInterval   time.Duration
	RetryMaxElapsed time.Duration
}

type Log struct {
	Level  string
	Format string
}

type Dispatch struct {
	MaxInFlight  int64
	Drain        bool
	DrainTimeout time.Duration
}

type Telemetry struct {
	Enabled bool
	Stdout  bool
}

// Config is the validated process configuration.
type Config struct {
	Telegram  Telegram
	Prefixes  []string
	Log       Log
	Dispatch  Dispatch
	Telemetry Telemetry
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.retry_interval", 5*time.Second)
	v.SetDefault("telegram.retry_max_elapsed", time.Duration(0))
	v.SetDefault("prefixes", []string{"/"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("dispatch.max_in_flight", 0)
	v.SetDefault("dispatch.drain", true)
	v.SetDefault("dispatch.drain_timeout", 10*time.Second)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
}

// Load reads path when it is non-empty, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Telegram: Telegram{
			Token:           v.GetString("telegram.token"),
			APIEndpoint:     v.GetString("telegram.api_endpoint"),
			PollTimeout:     v.GetDuration("telegram.poll_timeout"),
			RetryInterval:   v.GetDuration("telegram.retry_interval"),
			RetryMaxElapsed: v.GetDuration("telegram.retry_max_elapsed"),
		},
		Prefixes: v.GetStringSlice("prefixes"),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Dispatch: Dispatch{
			MaxInFlight:  v.GetInt64("dispatch.max_in_flight"),
			Drain:        v.GetBool("dispatch.drain"),
			DrainTimeout: v.GetDuration("dispatch.drain_timeout"),
		},
		Telemetry: Telemetry{
			Enabled: v.GetBool("telemetry.enabled"),
			Stdout:  v.GetBool("telemetry.stdout"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. The token is not required here because it
// may come from the keychain.
func (c *Config) Validate() error {
	if len(c.Prefixes) == 0 {
		return fmt.Errorf("config: prefixes: at least one is required")
	}
	for _, p := range c.Prefixes {
		if p == "" {
			return fmt.Errorf("config: prefixes: empty prefix")
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("config: log.format: unknown format %q", c.Log.Format)
	}
	if !strings.Contains(c.Telegram.APIEndpoint, "%s") {
		return fmt.Errorf("config: telegram.api_endpoint: must contain %%s placeholders")
	}
	if c.Telegram.PollTimeout < time.Second {
		return fmt.Errorf("config: telegram.poll_timeout: must be at least 1s")
	}
	if c.Telegram.RetryInterval <= 0 {
		return fmt.Errorf("config: telegram.retry_interval: must be positive")
	}
	if c.Telegram.RetryMaxElapsed < 0 {
		return fmt.Errorf("config: telegram.retry_max_elapsed: must not be negative")
	}
	if c.Dispatch.MaxInFlight < 0 {
		return fmt.Errorf("config: dispatch.max_in_flight: must not be negative")
	}
	if c.Dispatch.DrainTimeout < 0 {
		return fmt.Errorf("config: dispatch.drain_timeout: must not be negative")
	}
	return nil
}
