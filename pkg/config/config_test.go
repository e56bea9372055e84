package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty helper name",
			mutate:  func(c *Config) { c.Helper.Name = "" },
			wantErr: true,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Helper.Attempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.Helper.Backoff = Duration(-time.Second) },
			wantErr: true,
		},
		{
			name:    "negative min uid",
			mutate:  func(c *Config) { c.Users.MinUID = -1 },
			wantErr: true,
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Firewall.Ports = []PortRule{{Port: 70000, Protocol: "tcp"}}
			},
			wantErr: true,
		},
		{
			name: "bad protocol",
			mutate: func(c *Config) {
				c.Firewall.Ports = []PortRule{{Port: 80, Protocol: "icmp"}}
			},
			wantErr: true,
		},
		{
			name: "valid port rule",
			mutate: func(c *Config) {
				c.Firewall.Ports = []PortRule{{Port: 8080, Protocol: "udp"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
