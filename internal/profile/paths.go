package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv relocates the base directory, mainly for tests and packaging.
const HomeEnv = "ATITLAN_HOME"

// BaseDir returns ~/.atitlan unless ATITLAN_HOME is set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".atitlan")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the board daemon socket for a profile.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "board.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the board database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "board.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "vibesd.log")
}

// ClientLogPath returns the log file shared by the TUI and CLI.
func ClientLogPath(name string) string {
	return filepath.Join(LogDir(name), "vibes.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
