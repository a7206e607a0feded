package config

import (
	"fmt"
	"os"

	"howett.net/plist"
)

// preferences mirrors the keys a macOS defaults domain can carry
type preferences struct {
	OutputFormat string        `plist:"outputFormat"`
	Verbose      bool          `plist:"verbose"`
	LogLevel     string        `plist:"logLevel"`
	CommandRoles []CommandRole `plist:"commandRoles"`
	PortRoles    []PortRole    `plist:"portRoles"`
}

// loadPreferences reads a plist preferences file and returns the settings it
// holds as a viper config map. A missing file or empty path yields nil.
func loadPreferences(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	return decodePreferences(data)
}

func decodePreferences(data []byte) (map[string]any, error) {
	var prefs preferences
	if _, err := plist.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode plist: %w", err)
	}

	out := make(map[string]any)

	output := make(map[string]any)
	if prefs.OutputFormat != "" {
		output["format"] = prefs.OutputFormat
	}
	if prefs.Verbose {
		output["verbose"] = true
	}
	if len(output) > 0 {
		out["output"] = output
	}

	if prefs.LogLevel != "" {
		out["log"] = map[string]any{"level": prefs.LogLevel}
	}

	roles := make(map[string]any)
	if len(prefs.CommandRoles) > 0 {
		commands := make([]map[string]any, 0, len(prefs.CommandRoles))
		for _, r := range prefs.CommandRoles {
			commands = append(commands, map[string]any{"pattern": r.Pattern, "description": r.Description})
		}
		roles["commands"] = commands
	}
	if len(prefs.PortRoles) > 0 {
		ports := make([]map[string]any, 0, len(prefs.PortRoles))
		for _, r := range prefs.PortRoles {
			ports = append(ports, map[string]any{"port": r.Port, "description": r.Description})
		}
		roles["ports"] = ports
	}
	if len(roles) > 0 {
		out["roles"] = roles
	}

	return out, nil
}
