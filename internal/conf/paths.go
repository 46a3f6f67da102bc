package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPaths returns the OS-specific search path for config.yaml,
// most-preferred first, the way the teacher's GetDefaultConfigPaths does.
func DefaultConfigPaths() ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return nil, fmt.Errorf("APPDATA environment variable not set")
		}
		return []string{filepath.Join(appData, "ingen")}, nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting user home directory: %w", err)
		}
		return []string{filepath.Join(home, "Library", "Application Support", "ingen")}, nil

	default: // linux and other unix-likes
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return []string{filepath.Join(xdg, "ingen"), "/etc/ingen"}, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return []string{"/etc/ingen"}, nil //nolint:nilerr // fall back to system path
		}
		return []string{filepath.Join(home, ".config", "ingen"), "/etc/ingen"}, nil
	}
}
