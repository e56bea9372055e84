package bootstrap_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/doarch/pkg/bootstrap"
	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/pkgmgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helperConfig() config.Helper {
	return config.Helper{
		Name:           "paru",
		GitURL:         "https://aur.archlinux.org/paru.git",
		SnapshotURL:    "https://aur.archlinux.org/cgit/aur.git/snapshot/paru.tar.gz",
		MirrorURL:      "https://github.com/Morganamilo/paru.git",
		BuildDeps:      []string{"base-devel", "git", "rust"},
		MakepkgCommand: "makepkg --noconfirm -f",
		CargoCommand:   "cargo build --release --locked",
		Attempts:       2,
		Backoff:        config.Duration(time.Millisecond),
	}
}

func newBootstrapper(runner *executor.Scripted) (*bootstrap.Bootstrapper, filesystem.FS) {
	fs := filesystem.NewMemory()
	build := executor.Cred{Username: "aurbuild", UID: 1000, GID: 1000, Home: "/home/aurbuild"}
	b := bootstrap.New(helperConfig(), build, runner, pkgmgr.NewPacman(runner), fs)
	b.TempRoot = "/scratch"
	return b, fs
}

func countContaining(lines []string, substr string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestRunSkipsWhenInstalled(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubOutput("pacman -Q paru", "paru 2.0.4-1\n")
	b, _ := newBootstrapper(runner)

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.AlreadyInstalled)
	assert.Equal(t, "2.0.4-1", report.Version)
	assert.Len(t, runner.Calls(), 1, "an installed helper must trigger zero strategy runs")
}

func TestRunInstallsPrerequisitesFirst(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubFail("pacman -Q paru", 1)
	runner.StubFail("git clone", 1)
	runner.StubFail("curl", 1)
	b, _ := newBootstrapper(runner)

	_, _ = b.Run(context.Background())

	lines := runner.Lines()
	require.True(t, len(lines) >= 2)
	assert.Equal(t, "pacman -Q paru", lines[0])
	assert.Equal(t, "pacman -S --noconfirm --needed base-devel git rust", lines[1])
}

func TestFallbackToSnapshot(t *testing.T) {
	runner := executor.NewScripted()
	b, fs := newBootstrapper(runner)

	runner.StubFail("pacman -Q paru", 1)
	runner.StubFail("https://aur.archlinux.org/paru.git", 1)
	runner.StubFunc("tar -xzf", func(cmd executor.Command) (executor.Result, error) {
		// the snapshot unpacks to a directory named after the package
		return executor.Result{}, fs.MkdirAll(filepath.Join(cmd.Dir, "paru"), 0755)
	})
	runner.StubFunc("makepkg", func(cmd executor.Command) (executor.Result, error) {
		pkg := filepath.Join(cmd.Dir, "paru-2.0.4-1-x86_64.pkg.tar.zst")
		return executor.Result{}, fs.WriteFile(pkg, []byte("pkg"), 0644)
	})

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snapshot", report.Strategy)
	assert.Equal(t, bootstrap.Package, report.Kind)

	lines := runner.Lines()
	assert.Equal(t, 2, countContaining(lines, "https://aur.archlinux.org/paru.git"),
		"the first strategy gets its attempts before falling through")
	assert.Equal(t, 0, countContaining(lines, "github.com/Morganamilo"),
		"a succeeding strategy must stop the chain")
	assert.Equal(t, 0, countContaining(lines, "cargo"))
	assert.Equal(t, 1, countContaining(lines, "pacman -U --noconfirm"))

	assert.False(t, filesystem.Exists(fs, "/scratch/doarch-bootstrap"),
		"the build directory is removed after a successful run")
}

func TestFallbackToMirrorBinary(t *testing.T) {
	runner := executor.NewScripted()
	b, fs := newBootstrapper(runner)

	runner.StubFail("pacman -Q paru", 1)
	runner.StubFail("https://aur.archlinux.org/paru.git", 1)
	runner.StubFail("curl", 1)
	runner.StubFunc("cargo build", func(cmd executor.Command) (executor.Result, error) {
		releaseDir := filepath.Join(cmd.Dir, "target", "release")
		if err := fs.MkdirAll(releaseDir, 0755); err != nil {
			return executor.Result{}, err
		}
		return executor.Result{}, fs.WriteFile(filepath.Join(releaseDir, "paru"), []byte("elf"), 0755)
	})

	report, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mirror-build", report.Strategy)
	assert.Equal(t, bootstrap.Binary, report.Kind)

	lines := runner.Lines()
	assert.Equal(t, 1, countContaining(lines, "install -m755"))
	assert.Equal(t, 1, countContaining(lines, "/usr/local/bin/paru"))
	assert.Equal(t, 0, countContaining(lines, "pacman -U"),
		"a raw binary is never handed to the package manager")
}

func TestAllStrategiesExhausted(t *testing.T) {
	runner := executor.NewScripted()
	b, fs := newBootstrapper(runner)

	runner.StubFail("pacman -Q paru", 1)
	runner.StubFail("git clone", 1)
	runner.StubFail("curl", 1)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBootstrapExhausted))

	lines := runner.Lines()
	assert.Equal(t, 2, countContaining(lines, "https://aur.archlinux.org/paru.git"))
	assert.Equal(t, 2, countContaining(lines, "curl"))
	assert.Equal(t, 2, countContaining(lines, "github.com/Morganamilo"))
	assert.Equal(t, 0, countContaining(lines, "pacman -U"),
		"exhaustion must not report an installation")
	assert.Equal(t, 0, countContaining(lines, "install -m755"))

	assert.False(t, filesystem.Exists(fs, "/scratch/doarch-bootstrap"),
		"the build directory is removed on the failure path too")
}

func TestBuildCommandsRunAsBuildUser(t *testing.T) {
	runner := executor.NewScripted()
	b, fs := newBootstrapper(runner)

	runner.StubFail("pacman -Q paru", 1)
	runner.StubFunc("makepkg", func(cmd executor.Command) (executor.Result, error) {
		pkg := filepath.Join(cmd.Dir, "paru-2.0.4-1-x86_64.pkg.tar.zst")
		return executor.Result{}, fs.WriteFile(pkg, []byte("pkg"), 0644)
	})

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	for _, call := range runner.Calls() {
		switch call.Name {
		case "git", "curl", "tar", "makepkg", "cargo":
			require.NotNil(t, call.As, "%s must run as the build user", call.Name)
			assert.Equal(t, "aurbuild", call.As.Username)
		case "pacman", "install":
			assert.Nil(t, call.As, "%s runs privileged", call.Name)
		}
	}
}

func TestQueryFailureAborts(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubFail("pacman -Q paru", 2)
	b, _ := newBootstrapper(runner)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrQueryFailed))
	assert.Len(t, runner.Calls(), 1)
}

func TestPrerequisiteFailureAborts(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubFail("pacman -Q paru", 1)
	runner.StubFail("pacman -S --noconfirm --needed", 1)
	b, _ := newBootstrapper(runner)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBootstrapStrategy))
	assert.Equal(t, 0, countContaining(runner.Lines(), "git clone"))
}

func TestCancellationStopsRetrying(t *testing.T) {
	runner := executor.NewScripted()
	b, _ := newBootstrapper(runner)

	ctx, cancel := context.WithCancel(context.Background())
	runner.StubFail("pacman -Q paru", 1)
	runner.StubFunc("git clone", func(executor.Command) (executor.Result, error) {
		cancel()
		return executor.Result{ExitCode: 1},
			errors.New(errors.ErrCommandExit, "interrupted clone")
	})

	_, err := b.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, countContaining(runner.Lines(), "git clone"),
		"a cancelled run must not start further attempts")
}
