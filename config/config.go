// Package config loads task queue settings from defaults, an optional config
// file, a .env file and TASKQUEUE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// EnvPrefix prefixes every environment override, e.g. TASKQUEUE_QUEUE_WORKERS.
const EnvPrefix = "TASKQUEUE"

// Config holds the base configuration
type Config struct {
	Queue   QueueConfig   `mapstructure:"queue"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type QueueConfig struct {
	Name    string `mapstructure:"name"`
	Workers int    `mapstructure:"workers"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Namespace    string        `mapstructure:"namespace"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("queue.name", "")
	v.SetDefault("queue.workers", core.DefaultWorkerCount)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":2112")
	v.SetDefault("metrics.namespace", "taskrunner")
	v.SetDefault("metrics.poll_interval", time.Second)
}

// NewViper returns a viper instance with defaults and environment binding.
// Flags can be bound to it before calling Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Queue.Workers < 1 {
		errs = append(errs, fmt.Errorf("queue.workers must be at least 1, got %d", c.Queue.Workers))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.MaxSize < 0 || c.Log.MaxAge < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log rotation settings must not be negative"))
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
		}
		if c.Metrics.PollInterval <= 0 {
			errs = append(errs, fmt.Errorf("metrics.poll_interval must be positive, got %s", c.Metrics.PollInterval))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
