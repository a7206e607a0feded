package config

import (
	"fmt"
	"strings"

	"github.com/productdevbook/whichport/internal/role"
)

// Config holds the user's settings. It is read once at startup and never
// written back.
type Config struct {
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
	Roles  RolesConfig  `mapstructure:"roles"`
}

// OutputConfig controls how results are printed
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
}

// LogConfig controls diagnostic logging. Logs never go to stdout.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// RolesConfig adds role rules that are checked before the built-in ones
type RolesConfig struct {
	Commands []CommandRole `mapstructure:"commands"`
	Ports    []PortRole    `mapstructure:"ports"`
}

type CommandRole struct {
	Pattern     string `mapstructure:"pattern" plist:"pattern"`
	Description string `mapstructure:"description" plist:"description"`
}

type PortRole struct {
	Port        int    `mapstructure:"port" plist:"port"`
	Description string `mapstructure:"description" plist:"description"`
}

const (
	FormatText = "text"
	FormatJSON = "json"

	LogOutputStderr = "stderr"
	LogOutputFile   = "file"
)

// Validate rejects settings the rest of the program cannot honor
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unsupported output format: %q", c.Output.Format)
	}

	switch strings.ToLower(c.Log.Format) {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}

	switch strings.ToLower(c.Log.Output) {
	case LogOutputStderr:
	case LogOutputFile:
		if c.Log.File == "" {
			return fmt.Errorf("log.file is required when log.output is %q", LogOutputFile)
		}
	default:
		return fmt.Errorf("unsupported log output: %q", c.Log.Output)
	}

	for i, r := range c.Roles.Commands {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("roles.commands[%d]: pattern is empty", i)
		}
	}
	for i, r := range c.Roles.Ports {
		if r.Port < 1 || r.Port > 65535 {
			return fmt.Errorf("roles.ports[%d]: port %d out of range", i, r.Port)
		}
	}

	return nil
}

// JSON reports whether results should be printed as JSON
func (c *Config) JSON() bool {
	return strings.EqualFold(c.Output.Format, FormatJSON)
}

// RoleTable converts the configured rules into a role table
func (c *Config) RoleTable() role.Table {
	var t role.Table
	for _, r := range c.Roles.Commands {
		t.Commands = append(t.Commands, role.CommandRule{Pattern: r.Pattern, Description: r.Description})
	}
	for _, r := range c.Roles.Ports {
		t.Ports = append(t.Ports, role.PortRule{Port: uint16(r.Port), Description: r.Description})
	}
	return t
}
