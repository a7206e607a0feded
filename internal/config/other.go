//go:build !darwin

package config

// preferencesPath is empty on platforms without a defaults system
func preferencesPath(home string) string {
	return ""
}
