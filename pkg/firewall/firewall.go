// Package firewall writes the firewalld zone used by provisioned
// machines and walks firewalld through loading it. Zone documents are
// generated, never templated by string concatenation.
package firewall

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Firewall applies the configured zone for one provisioning run
type Firewall struct {
	cfg    config.Firewall
	fs     filesystem.FS
	runner executor.Runner
	logger zerolog.Logger
}

// New creates a Firewall for the given zone configuration
func New(cfg config.Firewall, fsys filesystem.FS, runner executor.Runner) *Firewall {
	return &Firewall{
		cfg:    cfg,
		fs:     fsys,
		runner: runner,
		logger: logging.GetLogger("firewall"),
	}
}

// ZonePath is where the zone document lands
func (f *Firewall) ZonePath() string {
	return filepath.Join(paths.FirewallZoneDir, f.cfg.Zone+".xml")
}

// ZoneXML renders the firewalld zone document from the configured
// services and ports
func (f *Firewall) ZoneXML() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	zone := doc.CreateElement("zone")
	zone.CreateElement("short").SetText(f.cfg.Zone)
	if f.cfg.Description != "" {
		zone.CreateElement("description").SetText(f.cfg.Description)
	}
	for _, name := range f.cfg.Services {
		zone.CreateElement("service").CreateAttr("name", name)
	}
	for _, rule := range f.cfg.Ports {
		port := zone.CreateElement("port")
		port.CreateAttr("port", strconv.Itoa(rule.Port))
		port.CreateAttr("protocol", rule.Protocol)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// Apply writes the zone file, then enables firewalld, reloads it, and
// makes the zone the default when configured. Each failing firewalld
// step is a warning collected for the summary; only the zone file
// itself is load-bearing.
func (f *Firewall) Apply(ctx context.Context) ([]string, error) {
	if f.cfg.Zone == "" {
		f.logger.Debug().Msg("no zone configured, skipping firewall")
		return nil, nil
	}

	data, err := f.ZoneXML()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot render zone document")
	}
	if err := f.fs.MkdirAll(paths.FirewallZoneDir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", paths.FirewallZoneDir)
	}
	if err := f.fs.WriteFile(f.ZonePath(), data, 0644); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", f.ZonePath())
	}
	f.logger.Info().Str("zone", f.cfg.Zone).Str("path", f.ZonePath()).Msg("zone written")

	steps := []executor.Command{
		{Name: "systemctl", Args: []string{"enable", "--now", "firewalld.service"}},
		{Name: "firewall-cmd", Args: []string{"--reload"}},
	}
	if f.cfg.SetDefault {
		steps = append(steps, executor.Command{
			Name: "firewall-cmd",
			Args: []string{"--set-default-zone", f.cfg.Zone},
		})
	}

	var warnings []string
	for _, step := range steps {
		if _, err := f.runner.Run(ctx, step); err != nil {
			f.logger.Warn().Err(err).Str("step", step.String()).Msg("firewall step failed")
			warnings = append(warnings, step.String())
		}
	}
	return warnings, nil
}
