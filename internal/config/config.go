package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.bitcoin-tui)
	ConfigDir string

	// JournalPath is the SQLite call journal
	JournalPath string

	// LogFile is the default debug log destination
	LogFile string

	// KeybindsFile holds user keybinding overrides
	KeybindsFile string
)

// configNames are probed in order when no --config is given
var configNames = []string{"config.yaml", "config.yml", "config.toml", "config.jsonc", "config.json"}

// Initialize sets up the configuration directory under the user's home.
// It creates ~/.bitcoin-tui/ if it doesn't exist.
func Initialize() error {
	home, err := homedir.Dir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitializeAt(filepath.Join(home, ".bitcoin-tui"))
}

// InitializeAt sets the global paths relative to dir and creates it.
func InitializeAt(dir string) error {
	ConfigDir = dir
	JournalPath = filepath.Join(ConfigDir, "journal.db")
	LogFile = filepath.Join(ConfigDir, "debug.log")
	KeybindsFile = filepath.Join(ConfigDir, "keybinds.json")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}
	return nil
}

// DefaultConfigFile returns the first existing config file in ConfigDir, or "".
func DefaultConfigFile() string {
	for _, name := range configNames {
		path := filepath.Join(ConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ExpandPath resolves a leading ~ to the home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %s: %w", path, err)
	}
	return expanded, nil
}
