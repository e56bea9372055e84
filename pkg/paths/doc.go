// Package paths provides centralized path handling for doarch.
//
// This package resolves the profile directory, implements the XDG Base
// Directory specification for doarch's own files, and names the fixed
// system destinations provisioning writes to. It handles:
//
//   - Profile root discovery and configuration
//   - XDG directory structure (data, config, cache, state)
//   - Path normalization and expansion
//   - Backup timestamp formatting
//
// # Environment Variables
//
// The package respects the following environment variables:
//
//   - DOARCH_PROFILE: Location of the profile directory (default: git root or cwd)
//   - DOARCH_DATA_DIR: Override XDG data directory (default: $XDG_DATA_HOME/doarch)
//   - DOARCH_CONFIG_DIR: Override XDG config directory (default: $XDG_CONFIG_HOME/doarch)
//   - DOARCH_CACHE_DIR: Override XDG cache directory (default: $XDG_CACHE_HOME/doarch)
//
// # Usage
//
//	import "github.com/arthur-debert/doarch/pkg/paths"
//
//	// Create a new Paths instance
//	p, err := paths.New("")  // Auto-detect profile root
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Get various paths
//	root := p.ProfileRoot()             // /home/user/arch-profile
//	manifest := p.InProfile("packages.list")
//	cfg := p.ProfileConfigPath()        // <profile>/doarch.toml
package paths
