// Package config loads ngenius-go host configuration from a file and the
// environment. It is a thin layer over the functional options in package
// ngpas: hosts that already have a configuration story can skip it and build
// options directly.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eposlink/ngenius-go/logger"
	"github.com/eposlink/ngenius-go/ngpas"
)

// Config holds the deployable settings of one PED connection.
type Config struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	MerchantID string `mapstructure:"merchant_id"`
	TerminalID string `mapstructure:"terminal_id"`
	Currency   string `mapstructure:"currency"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	BaseTimeout  time.Duration `mapstructure:"base_timeout"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the configuration file at path (YAML, JSON or TOML, by
// extension) and overlays NGENIUS_* environment variables. An empty path
// loads from the environment and defaults alone.
func Load(path string) (*Config, error) {
	v := viper.New()

	// every key needs a default so env-only values survive Unmarshal
	v.SetDefault("host", "")
	v.SetDefault("port", 6000)
	v.SetDefault("merchant_id", "")
	v.SetDefault("terminal_id", "")
	v.SetDefault("currency", "AED")
	v.SetDefault("poll_interval", ngpas.DefaultPollInterval)
	v.SetDefault("base_timeout", ngpas.DefaultBaseTimeout)
	v.SetDefault("log_file", logger.DefaultLogFile)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("NGENIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("config: host is required")
	}

	return cfg, nil
}

// Options maps the loaded settings onto connection options for
// ngpas.NewConnectionConfig.
func (c *Config) Options() []ngpas.ConnOption {
	opts := []ngpas.ConnOption{
		ngpas.WithMerchant(c.MerchantID, c.TerminalID),
		ngpas.WithPollInterval(c.PollInterval),
		ngpas.WithBaseTimeout(c.BaseTimeout),
	}
	if c.Currency != "" {
		opts = append(opts, ngpas.WithCurrency(c.Currency))
	}

	return opts
}

// Logger builds the process-wide file logger described by the configuration.
func (c *Config) Logger() logger.Logger {
	return logger.NewFile(c.LogFile, parseLevel(c.LogLevel))
}

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
