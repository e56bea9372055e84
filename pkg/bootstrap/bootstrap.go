// Package bootstrap acquires and installs the AUR helper. Acquisition
// tries an ordered list of strategies, each retried a bounded number of
// times with a fixed backoff; one strategy exhausting its attempts
// falls through to the next, and only total exhaustion is fatal. Every
// acquisition and build command runs as the unprivileged build user;
// only installing the finished artifact happens as root.
package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/pkgmgr"
	"github.com/google/shlex"
	"github.com/rs/zerolog"
)

// Kind says which install mechanism an artifact needs
type Kind string

const (
	// Package is a native package file, registered with pacman -U
	Package Kind = "package"
	// Binary is a bare executable, copied into the system path
	Binary Kind = "binary"
)

// BinaryInstallDir is where raw binary artifacts land
const BinaryInstallDir = "/usr/local/bin"

// Artifact is the installable output of a successful strategy
type Artifact struct {
	Kind Kind
	Path string
}

// Strategy is one way of turning sources into an artifact. Build runs
// entirely as the build user inside the given fresh working directory.
type Strategy struct {
	Name  string
	Build func(ctx context.Context, workDir string) (Artifact, error)
}

// Report describes what the bootstrap run did
type Report struct {
	// AlreadyInstalled is true when the helper was found and nothing ran
	AlreadyInstalled bool
	// Version of the helper found pre-installed
	Version string
	// Strategy that produced the artifact
	Strategy string
	// Kind of the artifact that was installed
	Kind Kind
}

// Bootstrapper carries everything one bootstrap run needs. Nothing
// here is process-global; a fresh value is built per provisioning run.
type Bootstrapper struct {
	cfg    config.Helper
	build  executor.Cred
	runner executor.Runner
	pacman *pkgmgr.Pacman
	fs     filesystem.FS
	logger zerolog.Logger

	// TempRoot is where the run-scoped build directory is created.
	// Defaults to the system temp dir; tests point it elsewhere.
	TempRoot string
}

// New creates a Bootstrapper building as the given user
func New(cfg config.Helper, build executor.Cred, runner executor.Runner, pac *pkgmgr.Pacman, fsys filesystem.FS) *Bootstrapper {
	return &Bootstrapper{
		cfg:      cfg,
		build:    build,
		runner:   runner,
		pacman:   pac,
		fs:       fsys,
		logger:   logging.GetLogger("bootstrap"),
		TempRoot: os.TempDir(),
	}
}

// Run bootstraps the helper end to end: skip if installed, otherwise
// acquire through the strategy chain and install the artifact. The
// build directory is removed on every exit path.
func (b *Bootstrapper) Run(ctx context.Context) (Report, error) {
	state, err := b.pacman.Installed(ctx, b.cfg.Name)
	if err != nil {
		return Report{}, err
	}
	if state.Found {
		b.logger.Info().
			Str("helper", b.cfg.Name).
			Str("version", state.Version).
			Msg("helper already installed, skipping bootstrap")
		return Report{AlreadyInstalled: true, Version: state.Version}, nil
	}

	if len(b.cfg.BuildDeps) > 0 {
		if err := b.pacman.Install(ctx, b.cfg.BuildDeps...); err != nil {
			return Report{}, errors.Wrap(err, errors.ErrBootstrapStrategy,
				"failed to install build prerequisites")
		}
	}

	root := filepath.Join(b.TempRoot, "doarch-bootstrap")
	if err := b.freshDir(root); err != nil {
		return Report{}, err
	}
	defer func() {
		if err := b.fs.RemoveAll(root); err != nil {
			b.logger.Warn().Err(err).Str("dir", root).Msg("failed to remove build directory")
		}
	}()

	artifact, strategy, err := b.acquire(ctx, root)
	if err != nil {
		return Report{}, err
	}

	if err := b.install(ctx, artifact); err != nil {
		return Report{}, err
	}
	b.logger.Info().
		Str("helper", b.cfg.Name).
		Str("strategy", strategy).
		Str("kind", string(artifact.Kind)).
		Msg("helper installed")
	return Report{Strategy: strategy, Kind: artifact.Kind}, nil
}

// acquire walks the strategy chain until one produces an artifact
func (b *Bootstrapper) acquire(ctx context.Context, root string) (Artifact, string, error) {
	var lastErr error
	for _, s := range b.strategies() {
		artifact, err := b.runStrategy(ctx, s, root)
		if err == nil {
			return artifact, s.Name, nil
		}
		if ctx.Err() != nil {
			return Artifact{}, "", err
		}
		lastErr = err
		b.logger.Warn().Err(err).
			Str("strategy", s.Name).
			Msg("strategy exhausted, falling through")
	}
	return Artifact{}, "", errors.Wrapf(lastErr, errors.ErrBootstrapExhausted,
		"every acquisition strategy for %s failed", b.cfg.Name)
}

// runStrategy gives one strategy its bounded attempts, each in a fresh
// working directory, sleeping the configured backoff between attempts
func (b *Bootstrapper) runStrategy(ctx context.Context, s Strategy, root string) (Artifact, error) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, b.cfg.Backoff.Std()); err != nil {
				return Artifact{}, err
			}
		}

		workDir := filepath.Join(root, s.Name+"-"+strconv.Itoa(attempt))
		if err := b.freshDir(workDir); err != nil {
			return Artifact{}, err
		}

		artifact, err := s.Build(ctx, workDir)
		if err == nil {
			return artifact, nil
		}
		if ctx.Err() != nil {
			return Artifact{}, err
		}
		lastErr = err
		b.logger.Warn().Err(err).
			Str("strategy", s.Name).
			Int("attempt", attempt).
			Int("attempts", b.cfg.Attempts).
			Msg("attempt failed")
	}
	return Artifact{}, lastErr
}

func (b *Bootstrapper) strategies() []Strategy {
	return []Strategy{
		{Name: "aur-clone", Build: b.cloneAndMakepkg(b.cfg.GitURL)},
		{Name: "snapshot", Build: b.snapshotAndMakepkg},
		{Name: "mirror-build", Build: b.cloneAndCargo(b.cfg.MirrorURL)},
	}
}

// cloneAndMakepkg clones a PKGBUILD repository and builds the native
// package from it
func (b *Bootstrapper) cloneAndMakepkg(url string) func(context.Context, string) (Artifact, error) {
	return func(ctx context.Context, workDir string) (Artifact, error) {
		srcDir := filepath.Join(workDir, "src")
		if err := b.runAsBuild(ctx, workDir, "git", "clone", "--depth", "1", url, "src"); err != nil {
			return Artifact{}, err
		}
		return b.makepkg(ctx, srcDir)
	}
}

// snapshotAndMakepkg fetches the AUR snapshot tarball and builds from
// the unpacked PKGBUILD directory. Snapshots unpack to a directory
// named after the package.
func (b *Bootstrapper) snapshotAndMakepkg(ctx context.Context, workDir string) (Artifact, error) {
	const tarball = "snapshot.tar.gz"
	if err := b.runAsBuild(ctx, workDir, "curl", "-fL", "-o", tarball, b.cfg.SnapshotURL); err != nil {
		return Artifact{}, err
	}
	if err := b.runAsBuild(ctx, workDir, "tar", "-xzf", tarball); err != nil {
		return Artifact{}, err
	}
	srcDir := filepath.Join(workDir, b.cfg.Name)
	if !filesystem.IsDir(b.fs, srcDir) {
		return Artifact{}, errors.Newf(errors.ErrBootstrapStrategy,
			"snapshot did not unpack to %s", srcDir)
	}
	return b.makepkg(ctx, srcDir)
}

// cloneAndCargo clones the upstream mirror and builds the bare binary
// with the plain toolchain
func (b *Bootstrapper) cloneAndCargo(url string) func(context.Context, string) (Artifact, error) {
	return func(ctx context.Context, workDir string) (Artifact, error) {
		srcDir := filepath.Join(workDir, "src")
		if err := b.runAsBuild(ctx, workDir, "git", "clone", "--depth", "1", url, "src"); err != nil {
			return Artifact{}, err
		}
		name, args, err := splitCommand(b.cfg.CargoCommand)
		if err != nil {
			return Artifact{}, err
		}
		if err := b.runAsBuild(ctx, srcDir, name, args...); err != nil {
			return Artifact{}, err
		}
		bin := filepath.Join(srcDir, "target", "release", b.cfg.Name)
		if !filesystem.Exists(b.fs, bin) {
			return Artifact{}, errors.Newf(errors.ErrArtifactMissing,
				"build produced no binary at %s", bin)
		}
		return Artifact{Kind: Binary, Path: bin}, nil
	}
}

// makepkg runs the configured build command in srcDir and locates the
// package it produced
func (b *Bootstrapper) makepkg(ctx context.Context, srcDir string) (Artifact, error) {
	name, args, err := splitCommand(b.cfg.MakepkgCommand)
	if err != nil {
		return Artifact{}, err
	}
	if err := b.runAsBuild(ctx, srcDir, name, args...); err != nil {
		return Artifact{}, err
	}
	pkg, err := b.findPackage(srcDir)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: Package, Path: pkg}, nil
}

// findPackage picks the package file makepkg left in dir, ignoring
// debug split packages and signature files
func (b *Bootstrapper) findPackage(dir string) (string, error) {
	entries, err := b.fs.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrArtifactMissing, "cannot read %s", dir)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.Contains(name, ".pkg.tar.") {
			continue
		}
		if strings.HasSuffix(name, ".sig") || strings.Contains(name, "-debug-") {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", errors.Newf(errors.ErrArtifactMissing, "no package produced in %s", dir)
}

// install registers the artifact system-wide. This is the only
// privileged step of the bootstrap.
func (b *Bootstrapper) install(ctx context.Context, artifact Artifact) error {
	switch artifact.Kind {
	case Package:
		if err := b.pacman.InstallFile(ctx, artifact.Path); err != nil {
			return errors.Wrapf(err, errors.ErrArtifactInstall,
				"failed to register package %s", artifact.Path)
		}
		return nil
	case Binary:
		dst := filepath.Join(BinaryInstallDir, b.cfg.Name)
		_, err := b.runner.Run(ctx, executor.Command{
			Name: "install",
			Args: []string{"-m755", artifact.Path, dst},
		})
		if err != nil {
			return errors.Wrapf(err, errors.ErrArtifactInstall,
				"failed to install binary to %s", dst)
		}
		return nil
	default:
		return errors.Newf(errors.ErrArtifactInstall, "unknown artifact kind %q", artifact.Kind)
	}
}

// runAsBuild runs one command in dir under the build user, streaming
// its output
func (b *Bootstrapper) runAsBuild(ctx context.Context, dir, name string, args ...string) error {
	as := b.build
	_, err := b.runner.Run(ctx, executor.Command{
		Name:   name,
		Args:   args,
		Dir:    dir,
		As:     &as,
		Stream: true,
	})
	return err
}

// freshDir (re)creates dir empty and owned by the build user
func (b *Bootstrapper) freshDir(dir string) error {
	if err := b.fs.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot clear %s", dir)
	}
	if err := b.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dir)
	}
	if err := b.fs.Chown(dir, b.build.UID, b.build.GID); err != nil {
		return errors.Wrapf(err, errors.ErrBuildUser, "cannot hand %s to %s", dir, b.build.Username)
	}
	return nil
}

// splitCommand splits a configured shell-style command line without
// involving a shell
func splitCommand(line string) (string, []string, error) {
	parts, err := shlex.Split(line)
	if err != nil || len(parts) == 0 {
		return "", nil, errors.Wrapf(err, errors.ErrConfigParse,
			"unusable build command %q", line)
	}
	return parts[0], parts[1:], nil
}

// sleep blocks for the backoff or until the context ends
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
