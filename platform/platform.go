// Package platform provides the OS-specific directory locations the
// application stores its config and cached bundles in.
package platform

import "os"

// AppName is the application name used for directory naming
const AppName = "ageset"

// AppDisplayName is the display name used on Windows
const AppDisplayName = "Ageset"

// GetDataDir returns the application data directory.
// Windows: %APPDATA%\Ageset
// Linux: ~/.local/share/ageset
// Falls back to ~/.ageset if XDG is not available.
func GetDataDir() string {
	return getDataDir()
}

// GetCacheDir returns the cache directory for downloaded dataset
// bundles.
// Windows: %APPDATA%\Ageset
// Linux: ~/.cache/ageset
func GetCacheDir() string {
	return getCacheDir()
}

// UserHomeDir returns the user's home directory with proper fallbacks.
func UserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
