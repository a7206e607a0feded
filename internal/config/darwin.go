//go:build darwin

package config

import "path/filepath"

const preferencesFile = "Library/Preferences/dev.whichport.cli.plist"

// preferencesPath points at the defaults domain written by
// `defaults write dev.whichport.cli ...`
func preferencesPath(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, preferencesFile)
}
