// Package pkgmgr wraps the package managers doarch drives: pacman for
// repository packages and the bootstrapped AUR helper for everything
// else. Queries return structured answers; callers never parse
// command output themselves.
package pkgmgr

import (
	"context"
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/rs/zerolog"
)

// InstallState is the structured answer to an installed query
type InstallState struct {
	Found   bool
	Version string
}

// Pacman drives the native package manager. Mutating calls assume the
// process runs as root.
type Pacman struct {
	runner executor.Runner
	logger zerolog.Logger
}

// NewPacman creates a pacman wrapper on the given runner
func NewPacman(r executor.Runner) *Pacman {
	return &Pacman{runner: r, logger: logging.GetLogger("pkgmgr")}
}

// Update refreshes the package databases and upgrades the system
func (p *Pacman) Update(ctx context.Context) error {
	p.logger.Info().Msg("updating system packages")
	_, err := p.runner.Run(ctx, executor.Command{
		Name:   "pacman",
		Args:   []string{"-Syu", "--noconfirm"},
		Stream: true,
	})
	return err
}

// Install installs repository packages in one invocation, skipping
// those already present
func (p *Pacman) Install(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := p.runner.Run(ctx, executor.Command{
		Name:   "pacman",
		Args:   append([]string{"-S", "--noconfirm", "--needed"}, names...),
		Stream: true,
	})
	return err
}

// InstallFile registers a built package artifact with pacman -U
func (p *Pacman) InstallFile(ctx context.Context, path string) error {
	_, err := p.runner.Run(ctx, executor.Command{
		Name:   "pacman",
		Args:   []string{"-U", "--noconfirm", path},
		Stream: true,
	})
	return err
}

// Installed queries the local database for one package. Absence is a
// regular answer, not an error; the version is read by position from
// the "name version" output line.
func (p *Pacman) Installed(ctx context.Context, name string) (InstallState, error) {
	res, err := p.runner.Run(ctx, executor.Command{
		Name: "pacman",
		Args: []string{"-Q", name},
	})
	if err != nil {
		// pacman -Q exits 1 for an unknown package
		if errors.IsErrorCode(err, errors.ErrCommandExit) && res.ExitCode == 1 {
			return InstallState{}, nil
		}
		return InstallState{}, errors.Wrapf(err, errors.ErrQueryFailed,
			"failed to query package %s", name)
	}

	state := InstallState{Found: true}
	if fields := strings.Fields(res.Stdout); len(fields) >= 2 {
		state.Version = fields[1]
	}
	return state, nil
}

// Helper drives the bootstrapped AUR helper. The helper refuses to run
// as root, so every call runs under the build user's credentials; its
// internal pacman invocations rely on the sudoers fragment provisioning
// writes beforehand.
type Helper struct {
	name   string
	as     executor.Cred
	runner executor.Runner
	logger zerolog.Logger
}

// NewHelper creates a wrapper for the named helper running as the
// given account
func NewHelper(r executor.Runner, name string, as executor.Cred) *Helper {
	return &Helper{
		name:   name,
		as:     as,
		runner: r,
		logger: logging.GetLogger("pkgmgr"),
	}
}

// Name returns the helper binary name
func (h *Helper) Name() string {
	return h.name
}

// Present reports whether the helper binary is reachable in PATH
func (h *Helper) Present() bool {
	return h.runner.Exists(h.name)
}

// Install installs one package, resolving AUR entries as needed
func (h *Helper) Install(ctx context.Context, name string) error {
	as := h.as
	_, err := h.runner.Run(ctx, executor.Command{
		Name:   h.name,
		Args:   []string{"-S", "--noconfirm", "--needed", name},
		As:     &as,
		Stream: true,
	})
	return err
}
