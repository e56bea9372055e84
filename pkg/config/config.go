package config

import (
	"time"

	"github.com/arthur-debert/doarch/pkg/errors"
)

// Duration is a time.Duration that reads and writes as a TOML string
// such as "5s" or "250ms".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a plain time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Profile holds the layout of the profile directory. Entries are
// relative to the profile root unless absolute.
type Profile struct {
	// Manifest is the line-oriented package list
	Manifest string `koanf:"manifest" toml:"manifest"`
	// Templates is the per-user configuration template tree
	Templates string `koanf:"templates" toml:"templates"`
	// Wallpapers holds image assets installed system-wide
	Wallpapers string `koanf:"wallpapers" toml:"wallpapers"`
	// Blender holds the Blender preset tree
	Blender string `koanf:"blender" toml:"blender"`
}

// Users controls target user selection
type Users struct {
	// MinUID is the lowest UID considered a target user
	MinUID int `koanf:"min_uid" toml:"min_uid"`
	// Include names users to target explicitly, skipping discovery
	Include []string `koanf:"include" toml:"include"`
	// Exclude names users discovery must never target
	Exclude []string `koanf:"exclude" toml:"exclude"`
}

// Helper describes the AUR helper to bootstrap and how to get it
type Helper struct {
	// Name is the helper binary and package name
	Name string `koanf:"name" toml:"name"`
	// GitURL is the primary AUR repository
	GitURL string `koanf:"git_url" toml:"git_url"`
	// SnapshotURL is the AUR snapshot tarball
	SnapshotURL string `koanf:"snapshot_url" toml:"snapshot_url"`
	// MirrorURL is the upstream mirror built with the plain toolchain
	MirrorURL string `koanf:"mirror_url" toml:"mirror_url"`
	// BuildUser runs acquisition and builds; empty means the first
	// target user
	BuildUser string `koanf:"build_user" toml:"build_user"`
	// BuildDeps are packages installed (as root) before building
	BuildDeps []string `koanf:"build_deps" toml:"build_deps"`
	// MakepkgCommand builds a native package from a PKGBUILD checkout
	MakepkgCommand string `koanf:"makepkg_command" toml:"makepkg_command"`
	// CargoCommand builds the raw binary from the mirror checkout
	CargoCommand string `koanf:"cargo_command" toml:"cargo_command"`
	// Attempts is how often each strategy is tried before falling
	// through to the next
	Attempts int `koanf:"attempts" toml:"attempts"`
	// Backoff is the fixed pause between attempts
	Backoff Duration `koanf:"backoff" toml:"backoff"`
}

// Deploy controls per-user template deployment
type Deploy struct {
	// Overrides maps a top-level template entry to a home-relative
	// destination, replacing the default dot-prefix rule for that
	// entry. Example: vim = ".config/nvim"
	Overrides map[string]string `koanf:"overrides" toml:"overrides"`
}

// System lists machine-level configuration applied during provisioning
type System struct {
	// Services are systemd units enabled and started
	Services []string `koanf:"services" toml:"services"`
	// SetupCommands are extra commands run once, as root, after the
	// built-in system steps. Each entry is one shell-style command
	// line, split without being passed to a shell.
	SetupCommands []string `koanf:"setup_commands" toml:"setup_commands"`
}

// PortRule opens a single port in the generated firewall zone
type PortRule struct {
	Port     int    `koanf:"port" toml:"port"`
	Protocol string `koanf:"protocol" toml:"protocol"`
}

// Firewall describes the firewalld zone written during provisioning
type Firewall struct {
	// Zone is the zone name (and file name under the zone directory)
	Zone        string `koanf:"zone" toml:"zone"`
	Description string `koanf:"description" toml:"description"`
	// Services are firewalld service names allowed in the zone
	Services []string   `koanf:"services" toml:"services"`
	Ports    []PortRule `koanf:"ports" toml:"ports"`
	// SetDefault makes the zone the firewalld default after loading
	SetDefault bool `koanf:"set_default" toml:"set_default"`
}

// MimeDefault associates a desktop entry with the MIME types it handles
type MimeDefault struct {
	Desktop string   `koanf:"desktop" toml:"desktop"`
	Types   []string `koanf:"types" toml:"types"`
}

// Mime holds per-user default application registrations
type Mime struct {
	Defaults []MimeDefault `koanf:"defaults" toml:"defaults"`
}

// Blender controls Blender preset deployment
type Blender struct {
	// Version is the config directory ("4.1") created for users with
	// no Blender configuration yet; empty skips such users. Users with
	// one always get their newest existing version.
	Version string `koanf:"version" toml:"version"`
}

// Config is the main configuration structure
type Config struct {
	Profile  Profile  `koanf:"profile" toml:"profile"`
	Users    Users    `koanf:"users" toml:"users"`
	Helper   Helper   `koanf:"helper" toml:"helper"`
	Deploy   Deploy   `koanf:"deploy" toml:"deploy"`
	System   System   `koanf:"system" toml:"system"`
	Firewall Firewall `koanf:"firewall" toml:"firewall"`
	Mime     Mime     `koanf:"mime" toml:"mime"`
	Blender  Blender  `koanf:"blender" toml:"blender"`
}

// Validate rejects configurations the rest of the run cannot work with
func (c *Config) Validate() error {
	if c.Helper.Name == "" {
		return errors.New(errors.ErrConfigParse, "helper.name must not be empty")
	}
	if c.Helper.Attempts < 1 {
		return errors.Newf(errors.ErrConfigParse, "helper.attempts must be at least 1, got %d", c.Helper.Attempts)
	}
	if c.Helper.Backoff < 0 {
		return errors.New(errors.ErrConfigParse, "helper.backoff must not be negative")
	}
	if c.Helper.MakepkgCommand == "" || c.Helper.CargoCommand == "" {
		return errors.New(errors.ErrConfigParse, "helper build commands must not be empty")
	}
	if c.Users.MinUID < 0 {
		return errors.Newf(errors.ErrConfigParse, "users.min_uid must not be negative, got %d", c.Users.MinUID)
	}
	for _, p := range c.Firewall.Ports {
		if p.Port < 1 || p.Port > 65535 {
			return errors.Newf(errors.ErrConfigParse, "firewall port out of range: %d", p.Port)
		}
		if p.Protocol != "tcp" && p.Protocol != "udp" {
			return errors.Newf(errors.ErrConfigParse, "firewall protocol must be tcp or udp, got %q", p.Protocol)
		}
	}
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := parse(nil, false)
	if err != nil {
		// The embedded defaults are compile-time constant; reaching
		// this means a broken build
		return &Config{}
	}
	return cfg
}
