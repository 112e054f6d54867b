// Package config loads settings from defaults, an optional config file,
// TODO_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"todo/internal/core"
)

const envPrefix = "TODO"

// keyReplacer maps nested keys to env names: retry.base -> TODO_RETRY_BASE.
var keyReplacer = strings.NewReplacer(".", "_", "-", "_")

// Config holds the settings shared by every command.
type Config struct {
	DBPath       string        `mapstructure:"db_path"`
	Port         string        `mapstructure:"port"`
	LogFile      string        `mapstructure:"log_file"`
	Verbose      bool          `mapstructure:"verbose"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Retry        Retry         `mapstructure:"retry"`

	// AllowedOrigins are extra origin host patterns the websocket stream
	// accepts. Same-origin connections are always accepted.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Retry controls re-subscription after the item feed fails.
type Retry struct {
	Enabled  bool          `mapstructure:"enabled"`
	Base     time.Duration `mapstructure:"base"`
	Max      time.Duration `mapstructure:"max"`
	Attempts int           `mapstructure:"attempts"`
}

// Backoff converts the retry settings for the sync core.
func (r Retry) Backoff() core.Backoff {
	return core.Backoff{Base: r.Base, Max: r.Max, Attempts: r.Attempts}
}

// CoreOptions returns the sync core options these settings imply.
func (c *Config) CoreOptions() []core.Option {
	opts := []core.Option{core.WithWriteTimeout(c.WriteTimeout)}
	if c.Retry.Enabled {
		opts = append(opts, core.WithRetry(c.Retry.Backoff()))
	}
	return opts
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./data/todo.db")
	v.SetDefault("port", "8080")
	v.SetDefault("log_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("write_timeout", 5*time.Second)
	v.SetDefault("retry.enabled", false)
	v.SetDefault("retry.base", core.DefaultBackoff.Base)
	v.SetDefault("retry.max", core.DefaultBackoff.Max)
	v.SetDefault("retry.attempts", 0)
	v.SetDefault("allowed_origins", []string{})
}

// Load reads the configuration. cfgFile may be empty, in which case
// todo.yaml is looked up in the working directory and ignored if absent.
// Flags named like config keys (with '-' for '_') override everything else.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(keyReplacer)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("todo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{"db_path", "port", "log_file", "verbose", "write_timeout"} {
			if f := flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, errors.New("db_path must not be empty")
	}
	return &cfg, nil
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
