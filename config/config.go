// Package config loads the pipesh settings from defaults, an optional YAML
// file and PIPESH_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes the environment variables overriding settings.
const EnvPrefix = "PIPESH"

// The setting keys.
const (
	KeyDatabase  = "database"
	KeyBatchSize = "batch_size"
	KeyPrompt    = "prompt"
	KeyHistory   = "history"
	KeyLogLevel  = "log_level"
	KeyUser      = "user"
)

// Config holds the pipesh settings.
type Config struct {
	// Database is the path of the SQLite tracker store.
	Database  string `mapstructure:"database"`
	BatchSize int    `mapstructure:"batch_size"`
	Prompt    string `mapstructure:"prompt"`
	// History is the file terminal history is kept in. Empty disables it.
	History  string `mapstructure:"history"`
	LogLevel string `mapstructure:"log_level"`
	// User is recorded as the author of comments and changes.
	User string `mapstructure:"user"`
}

// New returns a viper instance holding the defaults and reading the
// environment.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDatabase, "pipesh.db")
	v.SetDefault(KeyBatchSize, 50)
	v.SetDefault(KeyPrompt, "pipesh> ")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyUser, os.Getenv("USER"))
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault(KeyHistory, filepath.Join(home, ".pipesh_history"))
	} else {
		v.SetDefault(KeyHistory, "")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file into v and returns the resulting Config. When file is
// empty, $HOME/.pipesh.yaml is read if it exists.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".pipesh")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var err error

	if c.Database == "" {
		err = multierror.Append(err, errors.New("config: database must be set"))
	}
	if c.BatchSize <= 0 {
		err = multierror.Append(err, fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize))
	}
	if _, lerr := c.Level(); lerr != nil {
		err = multierror.Append(err, fmt.Errorf("config: log_level: %w", lerr))
	}
	return err
}

// Level returns the parsed log level.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}
