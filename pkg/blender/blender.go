// Package blender deploys Blender preset trees into each user's
// Blender configuration directory, with the same backup-then-copy
// semantics as the home deployment.
package blender

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/deploy"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/users"
	"github.com/rs/zerolog"
)

// versionPattern matches Blender config directory names ("4.1")
var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Blender deploys presets for one provisioning run
type Blender struct {
	cfg    config.Blender
	fs     filesystem.FS
	logger zerolog.Logger
}

// New creates a Blender preset deployer
func New(cfg config.Blender, fsys filesystem.FS) *Blender {
	return &Blender{cfg: cfg, fs: fsys, logger: logging.GetLogger("blender")}
}

// Apply deploys the preset tree for every target user. A missing
// preset source skips the whole step; users without a home or without
// any Blender configuration (and no pinned version) are skipped
// individually.
func (b *Blender) Apply(presets string, targets []users.User, timestamp string) []deploy.UserReport {
	if !filesystem.IsDir(b.fs, presets) {
		b.logger.Warn().Str("dir", presets).Msg("preset tree missing, skipping blender step")
		return nil
	}

	reports := make([]deploy.UserReport, 0, len(targets))
	for _, user := range targets {
		report := b.applyUser(user, presets, timestamp)
		switch {
		case report.Err != nil:
			b.logger.Error().Err(report.Err).Str("user", user.Name).Msg("preset deployment failed")
		case report.Skipped:
			b.logger.Debug().Str("user", user.Name).Str("reason", report.Reason).Msg("user skipped")
		default:
			b.logger.Info().Str("user", user.Name).Msg("presets deployed")
		}
		reports = append(reports, report)
	}
	return reports
}

func (b *Blender) applyUser(user users.User, presets, timestamp string) deploy.UserReport {
	report := deploy.UserReport{User: user}

	if user.Home == "" || !filesystem.IsDir(b.fs, user.Home) {
		report.Skipped = true
		report.Reason = "home directory missing"
		return report
	}

	versionDir, ok := b.versionDir(user.Home)
	if !ok {
		report.Skipped = true
		report.Reason = "no blender configuration found"
		return report
	}

	// freshly created directories must end up owned by the user too
	created := b.firstMissing(user.Home, versionDir)
	if created != "" {
		if err := b.fs.MkdirAll(versionDir, 0755); err != nil {
			report.Err = errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", versionDir)
			return report
		}
		if err := filesystem.ChownTree(b.fs, created, user.UID, user.GID); err != nil {
			report.Err = err
			return report
		}
	}

	target := deploy.Target{Source: presets, Dest: filepath.Join(versionDir, "config")}
	result, err := deploy.Place(b.fs, target, user, timestamp)
	if err != nil {
		report.Err = err
		return report
	}
	report.Targets = []deploy.TargetResult{result}
	return report
}

// versionDir picks the Blender config directory for one home: the
// newest existing version directory, or the pinned version when the
// user has none yet. No version anywhere means skip.
func (b *Blender) versionDir(home string) (string, bool) {
	root := filepath.Join(home, ".config", "blender")

	newest := ""
	newestMajor, newestMinor := -1, -1
	if entries, err := b.fs.ReadDir(root); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			m := versionPattern.FindStringSubmatch(entry.Name())
			if m == nil {
				continue
			}
			major, _ := strconv.Atoi(m[1])
			minor, _ := strconv.Atoi(m[2])
			if major > newestMajor || (major == newestMajor && minor > newestMinor) {
				newest = entry.Name()
				newestMajor, newestMinor = major, minor
			}
		}
	}

	if newest != "" {
		return filepath.Join(root, newest), true
	}
	if b.cfg.Version != "" {
		return filepath.Join(root, b.cfg.Version), true
	}
	return "", false
}

// firstMissing returns the highest component of target under home that
// does not exist yet, or "" when the whole path is present
func (b *Blender) firstMissing(home, target string) string {
	rel, err := filepath.Rel(home, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	current := home
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		if !filesystem.Exists(b.fs, current) {
			return current
		}
	}
	return ""
}
