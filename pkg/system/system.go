// Package system applies machine-level configuration: the kernel
// tuning drop-in, the sudoers policy fragment, systemd unit
// enablement, and any extra configured root commands.
package system

import (
	"context"
	_ "embed"
	"fmt"
	"path/filepath"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/google/shlex"
	"github.com/rs/zerolog"
)

//go:embed embedded/sysctl.conf
var sysctlConf []byte

//go:embed embedded/sudoers
var sudoersPolicy string

// System writes machine configuration for one provisioning run
type System struct {
	fs     filesystem.FS
	runner executor.Runner
	logger zerolog.Logger
}

// New creates a System over the given filesystem and runner
func New(fsys filesystem.FS, runner executor.Runner) *System {
	return &System{
		fs:     fsys,
		runner: runner,
		logger: logging.GetLogger("system"),
	}
}

// WriteSysctl writes the kernel tuning drop-in and asks the kernel to
// reload it. A failing reload is only a warning: the file persisting
// across reboots is what matters.
func (s *System) WriteSysctl(ctx context.Context) error {
	if err := s.fs.MkdirAll(filepath.Dir(paths.SysctlDropIn), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(paths.SysctlDropIn))
	}
	if err := s.fs.WriteFile(paths.SysctlDropIn, sysctlConf, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", paths.SysctlDropIn)
	}
	if _, err := s.runner.Run(ctx, executor.Command{Name: "sysctl", Args: []string{"--system"}}); err != nil {
		s.logger.Warn().Err(err).Msg("sysctl reload failed, settings apply on next boot")
	}
	return nil
}

// WriteSudoers installs the privilege policy fragment. The fragment is
// written under a name sudo ignores, checked with visudo, and only
// then moved into place; a rejected fragment is discarded.
func (s *System) WriteSudoers(ctx context.Context, buildUser string) error {
	content := sudoersPolicy
	if buildUser != "" {
		content += fmt.Sprintf("%s ALL=(ALL:ALL) NOPASSWD: /usr/bin/pacman\n", buildUser)
	}

	// sudo skips files containing a dot, so the staged fragment is inert
	staged := paths.SudoersDropIn + ".staged"
	if err := s.fs.MkdirAll(filepath.Dir(staged), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(staged))
	}
	if err := s.fs.WriteFile(staged, []byte(content), 0440); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", staged)
	}

	if _, err := s.runner.Run(ctx, executor.Command{Name: "visudo", Args: []string{"-cf", staged}}); err != nil {
		if rmErr := s.fs.Remove(staged); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("file", staged).Msg("failed to discard rejected fragment")
		}
		return errors.Wrap(err, errors.ErrInvalidInput, "sudoers fragment rejected by visudo")
	}

	if err := s.fs.Rename(staged, paths.SudoersDropIn); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot install %s", paths.SudoersDropIn)
	}
	if err := s.fs.Chmod(paths.SudoersDropIn, 0440); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot set mode on %s", paths.SudoersDropIn)
	}
	return nil
}

// EnableServices enables and starts each unit, continuing past
// failures. The units that failed come back for the run summary.
func (s *System) EnableServices(ctx context.Context, units []string) []string {
	var failed []string
	for _, unit := range units {
		_, err := s.runner.Run(ctx, executor.Command{
			Name: "systemctl",
			Args: []string{"enable", "--now", unit},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("unit", unit).Msg("failed to enable unit")
			failed = append(failed, unit)
			continue
		}
		s.logger.Info().Str("unit", unit).Msg("unit enabled")
	}
	return failed
}

// RunSetupCommands runs the configured extra root commands in order.
// Lines are split shell-style but never passed to a shell; a failing
// or unusable line is a warning, not a stop.
func (s *System) RunSetupCommands(ctx context.Context, lines []string) []string {
	var failed []string
	for _, line := range lines {
		parts, err := shlex.Split(line)
		if err != nil || len(parts) == 0 {
			s.logger.Warn().Str("command", line).Msg("unusable setup command")
			failed = append(failed, line)
			continue
		}
		_, err = s.runner.Run(ctx, executor.Command{
			Name:   parts[0],
			Args:   parts[1:],
			Stream: true,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("command", line).Msg("setup command failed")
			failed = append(failed, line)
		}
	}
	return failed
}
