package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultConfigFile is looked up in the working directory before the XDG config dirs.
const DefaultConfigFile = "config.json"

// GetDataDir resolves the directory that holds the default sqlite store. WDRC_DIR
// wins, then the XDG data home, then ~/.local/share.
func GetDataDir() string {
	if explicit := os.Getenv("WDRC_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "wdrc")
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "wdrc")
}

// GetDefaultDBPath returns the sqlite file used when the wdrc store names no database.
func GetDefaultDBPath() string {
	return filepath.Join(GetDataDir(), "wdrc.db")
}

// ResolvePath returns the config file to read. An explicit path is used as given.
// The default name falls back to wdrc/config.json under the XDG config dirs when it
// does not exist in the working directory.
func ResolvePath(path string) string {
	if path != "" && path != DefaultConfigFile {
		return path
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	xdg.Reload()
	if found, err := xdg.SearchConfigFile(filepath.Join("wdrc", DefaultConfigFile)); err == nil {
		return found
	}
	return DefaultConfigFile
}
