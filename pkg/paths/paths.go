// Package paths provides centralized path handling for doarch.
// It resolves the profile directory, applies XDG Base Directory
// fallbacks for doarch's own state, and names the fixed system
// locations that provisioning writes to.
package paths

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/doarch/pkg/errors"
)

// Environment variable names
const (
	// EnvProfile is the primary environment variable for the profile location
	EnvProfile = "DOARCH_PROFILE"

	// EnvDataDir overrides the XDG data directory for doarch
	EnvDataDir = "DOARCH_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for doarch
	EnvConfigDir = "DOARCH_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for doarch
	EnvCacheDir = "DOARCH_CACHE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Fixed system destinations.
// IMPORTANT: These constants define where provisioning output lands and
// are NOT user-configurable. They must stay consistent across doarch
// installations so that re-runs find what earlier runs wrote.
// User-configurable paths belong in pkg/config instead.
const (
	// DoarchDirName is the directory name for doarch-specific files
	DoarchDirName = "doarch"

	// SystemConfigDir is the machine-wide configuration directory
	SystemConfigDir = "/etc/doarch"

	// SystemConfigFile is the machine-wide configuration file
	SystemConfigFile = "/etc/doarch/doarch.toml"

	// ProfileConfigFile is the name of the per-profile configuration file
	ProfileConfigFile = "doarch.toml"

	// SysctlDropIn is the kernel tuning file written during provisioning
	SysctlDropIn = "/etc/sysctl.d/99-doarch.conf"

	// SudoersDropIn is the privilege policy fragment written during provisioning
	SudoersDropIn = "/etc/sudoers.d/doarch"

	// FirewallZoneDir is where generated firewalld zone files go
	FirewallZoneDir = "/etc/firewalld/zones"

	// WallpaperInstallDir is the system-wide wallpaper destination
	WallpaperInstallDir = "/usr/share/backgrounds/doarch"

	// LogFileName is the name of the log file
	LogFileName = "doarch.log"

	// SummaryFileName is the name of the last-run summary file
	SummaryFileName = "lastrun.json"
)

// BackupTimeFormat is the timestamp layout stamped onto backup names.
// One run shares a single timestamp so all of its backups correlate.
const BackupTimeFormat = "20060102-150405"

// RunTimestamp formats a moment for use in backup names.
func RunTimestamp(now time.Time) string {
	return now.Format(BackupTimeFormat)
}

// Paths provides centralized path management for doarch
type Paths interface {
	ProfileRoot() string
	UsedFallback() bool
	InProfile(rel string) string
	ProfileConfigPath() string
	DataDir() string
	ConfigDir() string
	CacheDir() string
	StateDir() string
	SummaryPath() string
	NormalizePath(path string) (string, error)
}

// paths provides centralized path management for doarch
type paths struct {
	// profileRoot is the directory holding manifest, templates and assets
	profileRoot string

	// xdgData is the XDG data directory
	xdgData string

	// xdgConfig is the XDG config directory
	xdgConfig string

	// xdgCache is the XDG cache directory
	xdgCache string

	// xdgState is the XDG state directory
	xdgState string

	// usedFallback indicates if we fell back to cwd (for warning display)
	usedFallback bool
}

// New creates a new Paths instance with the given profile root.
// If profileRoot is empty, it will be determined from environment
// variables or defaults.
func New(profileRoot string) (Paths, error) {
	p := &paths{}

	if profileRoot == "" {
		root, usedFallback, err := findProfileRoot()
		if err != nil {
			return nil, err
		}
		p.profileRoot = root
		p.usedFallback = usedFallback
	} else {
		p.profileRoot = ExpandHome(profileRoot)
		p.usedFallback = false
	}

	// Ensure profile root is absolute
	absRoot, err := filepath.Abs(p.profileRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for profile root")
	}
	p.profileRoot = absRoot

	p.setupXDGDirs()

	return p, nil
}

// setupXDGDirs initializes XDG directories, respecting environment overrides
func (p *paths) setupXDGDirs() {
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		p.xdgData = ExpandHome(dataDir)
	} else {
		p.xdgData = filepath.Join(xdg.DataHome, DoarchDirName)
	}

	if configDir := os.Getenv(EnvConfigDir); configDir != "" {
		p.xdgConfig = ExpandHome(configDir)
	} else {
		p.xdgConfig = filepath.Join(xdg.ConfigHome, DoarchDirName)
	}

	if cacheDir := os.Getenv(EnvCacheDir); cacheDir != "" {
		p.xdgCache = ExpandHome(cacheDir)
	} else {
		p.xdgCache = filepath.Join(xdg.CacheHome, DoarchDirName)
	}

	// XDG doesn't surface StateHome everywhere, so resolve it manually
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		p.xdgState = filepath.Join(stateDir, DoarchDirName)
	} else {
		homeDir, _ := os.UserHomeDir()
		p.xdgState = filepath.Join(homeDir, ".local", "state", DoarchDirName)
	}
}

// findProfileRoot determines the profile root using the following priority:
// 1. DOARCH_PROFILE environment variable (if set)
// 2. Git repository root (found via 'git rev-parse --show-toplevel')
// 3. Current working directory (fallback)
//
// The function returns:
// - string: The resolved profile root path
// - bool: Whether the current working directory was used as fallback
// - error: Any error that occurred during resolution
//
// This covers the common scenarios for a provisioning run:
// - Explicit configuration via DOARCH_PROFILE
// - Automatic detection when run from inside the cloned profile repo
// - Fallback to the current directory for unpacked, non-git profiles
func findProfileRoot() (string, bool, error) {
	if root := os.Getenv(EnvProfile); root != "" {
		return ExpandHome(root), false, nil
	}

	gitRoot, err := findGitRoot()
	if err == nil && gitRoot != "" {
		return gitRoot, false, nil
	}

	// Fallback to current working directory with warning
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrFileAccess, "failed to get current directory")
	}

	return cwd, true, nil
}

// findGitRoot attempts to find the root of the current git repository
func findGitRoot() (string, error) {
	output, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		// Not in a git repo, or git not installed
		return "", err
	}

	gitRoot := strings.TrimSpace(string(output))
	if gitRoot == "" {
		return "", errors.New(errors.ErrNotFound, "git root is empty")
	}

	return gitRoot, nil
}

// ExpandHome expands a leading ~ to the home directory
func ExpandHome(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.Getenv(EnvHome)
			if homeDir == "" {
				// Can't expand, return as-is
				return path
			}
		}

		if len(path) == 1 {
			return homeDir
		}

		if path[1] == '/' || path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:])
		}

		// ~something (not the user's home)
		return path
	}

	return path
}

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Try the HOME environment variable as a fallback
		if home := os.Getenv(EnvHome); home != "" {
			return home, nil
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get home directory")
	}
	return homeDir, nil
}

// ProfileRoot returns the directory holding manifest, templates and assets
func (p *paths) ProfileRoot() string {
	return p.profileRoot
}

// UsedFallback returns true if the current working directory was used as fallback
func (p *paths) UsedFallback() bool {
	return p.usedFallback
}

// InProfile joins a profile-relative path onto the profile root.
// Absolute paths pass through unchanged so configuration may point
// anywhere on the machine.
func (p *paths) InProfile(rel string) string {
	if rel == "" {
		return p.profileRoot
	}
	expanded := ExpandHome(rel)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(p.profileRoot, expanded)
}

// ProfileConfigPath returns the path to the profile's configuration file
func (p *paths) ProfileConfigPath() string {
	return filepath.Join(p.profileRoot, ProfileConfigFile)
}

// DataDir returns the XDG data directory for doarch
func (p *paths) DataDir() string {
	return p.xdgData
}

// ConfigDir returns the XDG config directory for doarch
func (p *paths) ConfigDir() string {
	return p.xdgConfig
}

// CacheDir returns the XDG cache directory for doarch
func (p *paths) CacheDir() string {
	return p.xdgCache
}

// StateDir returns the directory for state files
func (p *paths) StateDir() string {
	return p.xdgState
}

// SummaryPath returns the path where the last-run summary is written
func (p *paths) SummaryPath() string {
	return filepath.Join(p.StateDir(), SummaryFileName)
}

// NormalizePath normalizes a path by expanding home, making it absolute,
// and cleaning it
func (p *paths) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty path")
	}

	expanded := ExpandHome(path)

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path")
	}

	return filepath.Clean(abs), nil
}
