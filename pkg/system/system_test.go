package system_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/arthur-debert/doarch/pkg/system"
	"github.com/arthur-debert/doarch/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSysctl(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()

	err := system.New(fsys, runner).WriteSysctl(context.Background())
	require.NoError(t, err)

	data, err := fsys.ReadFile(paths.SysctlDropIn)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vm.swappiness")
	testutil.AssertSliceEqual(t, []string{"sysctl --system"}, runner.Lines())
}

func TestWriteSysctlReloadFailureIsNotFatal(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()
	runner.StubFail("sysctl --system", 1)

	err := system.New(fsys, runner).WriteSysctl(context.Background())
	require.NoError(t, err, "the file persisting matters, the reload does not")
	assert.True(t, filesystem.Exists(fsys, paths.SysctlDropIn))
}

func TestWriteSudoers(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()

	err := system.New(fsys, runner).WriteSudoers(context.Background(), "aurbuild")
	require.NoError(t, err)

	data, err := fsys.ReadFile(paths.SudoersDropIn)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%wheel ALL=(ALL:ALL) NOPASSWD: /usr/bin/pacman")
	assert.Contains(t, string(data), "aurbuild ALL=(ALL:ALL) NOPASSWD: /usr/bin/pacman")

	info, err := fsys.Stat(paths.SudoersDropIn)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0440), info.Mode().Perm())

	assert.False(t, filesystem.Exists(fsys, paths.SudoersDropIn+".staged"),
		"the staged fragment must not linger")
	testutil.AssertSliceEqual(t,
		[]string{"visudo -cf /etc/sudoers.d/doarch.staged"},
		runner.Lines())
}

func TestWriteSudoersRejectedFragment(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()
	runner.StubFail("visudo", 1)

	err := system.New(fsys, runner).WriteSudoers(context.Background(), "aurbuild")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))

	assert.False(t, filesystem.Exists(fsys, paths.SudoersDropIn),
		"a rejected fragment is never installed")
	assert.False(t, filesystem.Exists(fsys, paths.SudoersDropIn+".staged"))
}

func TestEnableServicesContinuesPastFailures(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()
	runner.StubFail("systemctl enable --now cups.service", 1)

	failed := system.New(fsys, runner).EnableServices(context.Background(),
		[]string{"NetworkManager.service", "cups.service", "fstrim.timer"})

	assert.Equal(t, []string{"cups.service"}, failed)
	testutil.AssertSliceEqual(t, []string{
		"systemctl enable --now NetworkManager.service",
		"systemctl enable --now cups.service",
		"systemctl enable --now fstrim.timer",
	}, runner.Lines())
}

func TestRunSetupCommands(t *testing.T) {
	fsys := filesystem.NewMemory()
	runner := executor.NewScripted()
	runner.StubFail("fwupdmgr refresh", 1)

	failed := system.New(fsys, runner).RunSetupCommands(context.Background(), []string{
		"timedatectl set-ntp true",
		"fwupdmgr refresh",
		"bad 'command",
	})

	assert.Equal(t, []string{"fwupdmgr refresh", "bad 'command"}, failed)
	testutil.AssertSliceEqual(t, []string{
		"timedatectl set-ntp true",
		"fwupdmgr refresh",
	}, runner.Lines(), "an unsplittable line never reaches the runner")
}
