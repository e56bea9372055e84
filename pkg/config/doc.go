// Package config handles configuration management for doarch.
// Configuration is layered: embedded defaults, the machine-wide file
// under /etc/doarch, the profile's doarch.toml, then DOARCH_*
// environment variables, each overriding the previous.
package config
