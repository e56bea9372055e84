// Package deploy copies the profile's template tree into target user
// homes without ever destroying existing state: a destination that
// already exists is renamed aside to a timestamped backup before the
// new tree is written, and the copied tree is handed back to the user
// afterwards. Each user is processed independently.
package deploy

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/users"
	"github.com/rs/zerolog"
)

// Target couples one template entry with its destination in a user's
// home. It carries the backup invariant: an existing destination is
// renamed to <dest>.bak.<timestamp> before anything is written.
type Target struct {
	Source string
	Dest   string
}

// TargetResult records what happened to one target
type TargetResult struct {
	Target   Target
	BackedUp bool
	// Backup is the path holding the pre-run content, when one was made
	Backup string
}

// UserReport collects one user's deployment outcome
type UserReport struct {
	User    users.User
	Skipped bool
	Reason  string
	Targets []TargetResult
	Err     error
}

// Deployer deploys a template tree for one provisioning run
type Deployer struct {
	fs        filesystem.FS
	overrides map[string]string
	logger    zerolog.Logger
}

// New creates a Deployer. Overrides map a top-level template entry to
// a home-relative destination, replacing the dot-prefix rule for that
// entry.
func New(fsys filesystem.FS, overrides map[string]string) *Deployer {
	return &Deployer{
		fs:        fsys,
		overrides: overrides,
		logger:    logging.GetLogger("deploy"),
	}
}

// Run deploys the template tree to every target user, sharing one
// timestamp across all backups of the run. A missing template tree
// skips the whole step; a failing user never stops the others.
func (d *Deployer) Run(templates string, targets []users.User, timestamp string) []UserReport {
	if !filesystem.IsDir(d.fs, templates) {
		d.logger.Warn().Str("dir", templates).Msg("template tree missing, skipping deployment")
		return nil
	}

	reports := make([]UserReport, 0, len(targets))
	for _, user := range targets {
		report := d.deployUser(user, templates, timestamp)
		switch {
		case report.Err != nil:
			d.logger.Error().Err(report.Err).Str("user", user.Name).Msg("deployment failed")
		case report.Skipped:
			d.logger.Warn().Str("user", user.Name).Str("reason", report.Reason).Msg("user skipped")
		default:
			d.logger.Info().Str("user", user.Name).Int("targets", len(report.Targets)).Msg("user deployed")
		}
		reports = append(reports, report)
	}
	return reports
}

func (d *Deployer) deployUser(user users.User, templates, timestamp string) UserReport {
	report := UserReport{User: user}

	if user.Home == "" || !filesystem.IsDir(d.fs, user.Home) {
		report.Skipped = true
		report.Reason = "home directory missing"
		return report
	}

	targets, err := d.Targets(templates, user)
	if err != nil {
		report.Err = err
		return report
	}

	for _, target := range targets {
		result, err := d.deployTarget(target, user, timestamp)
		if err != nil {
			report.Err = err
			return report
		}
		report.Targets = append(report.Targets, result)
	}
	return report
}

// Targets maps each top-level template entry into the user's home:
// dot-prefixed by default (config becomes ~/.config), replaced by an
// explicit override when one is configured. Entries already starting
// with a dot stay local to the profile and are never deployed.
func (d *Deployer) Targets(templates string, user users.User) ([]Target, error) {
	entries, err := d.fs.ReadDir(templates)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", templates)
	}

	var targets []Target
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		dest, ok := d.overrides[name]
		if !ok {
			dest = "." + name
		}
		targets = append(targets, Target{
			Source: filepath.Join(templates, name),
			Dest:   filepath.Join(user.Home, dest),
		})
	}
	return targets, nil
}

func (d *Deployer) deployTarget(target Target, user users.User, timestamp string) (TargetResult, error) {
	result, err := Place(d.fs, target, user, timestamp)
	if err == nil && result.BackedUp {
		d.logger.Debug().Str("from", target.Dest).Str("to", result.Backup).Msg("backed up")
	}
	return result, err
}

// Place walks one target through its states: absent is copied
// directly, present is backed up first. The copy runs privileged, so
// ownership of everything written is handed to the user afterwards.
// Preset deployment reuses this for trees outside the template layout.
func Place(fsys filesystem.FS, target Target, user users.User, timestamp string) (TargetResult, error) {
	result := TargetResult{Target: target}

	if filesystem.Exists(fsys, target.Dest) {
		backup := target.Dest + ".bak." + timestamp
		if filesystem.Exists(fsys, backup) {
			return result, errors.Newf(errors.ErrDeployBackup,
				"backup already exists: %s", backup)
		}
		if err := fsys.Rename(target.Dest, backup); err != nil {
			return result, errors.Wrapf(err, errors.ErrDeployBackup,
				"cannot back up %s", target.Dest)
		}
		result.BackedUp = true
		result.Backup = backup
	}

	if err := filesystem.CopyTree(fsys, target.Source, target.Dest); err != nil {
		return result, errors.Wrapf(err, errors.ErrDeployCopy,
			"cannot copy %s to %s", target.Source, target.Dest)
	}
	if err := filesystem.ChownTree(fsys, target.Dest, user.UID, user.GID); err != nil {
		return result, err
	}
	return result, nil
}
