package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "WHICHPORT"
	configDir  = ".whichport"
	configName = "config"
)

// Loader reads configuration from defaults, an optional file, the
// environment and bound command-line flags, in increasing priority.
type Loader struct {
	path  string
	home  string
	viper *viper.Viper
}

// NewLoader returns a loader. An empty path searches ~/.whichport for
// config.{yaml,json,toml}.
func NewLoader(path string) *Loader {
	home, _ := os.UserHomeDir()
	return &Loader{
		path:  path,
		home:  home,
		viper: viper.New(),
	}
}

// BindFlags lets flags override file and environment values
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"output.verbose": "verbose",
		"log.level":      "log-level",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load assembles and validates the configuration
func (l *Loader) Load() (*Config, error) {
	v := l.viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	l.setDefaults()

	if err := l.readFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Used returns the config file that was read, if any
func (l *Loader) Used() string {
	return l.viper.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	v := l.viper
	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.verbose", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", FormatText)
	v.SetDefault("log.output", LogOutputStderr)
	v.SetDefault("log.file", filepath.Join(l.home, configDir, "whichport.log"))
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

func (l *Loader) readFile() error {
	v := l.viper

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", l.path, err)
		}
		return nil
	}

	if l.home != "" {
		v.AddConfigPath(filepath.Join(l.home, configDir))
	}
	v.SetConfigName(configName)

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// No config file: fall back to the platform preferences, if any
	prefs, err := loadPreferences(preferencesPath(l.home))
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}
	if prefs != nil {
		if err := v.MergeConfigMap(prefs); err != nil {
			return fmt.Errorf("failed to merge preferences: %w", err)
		}
	}
	return nil
}
