package pkgmgr_test

import (
	"context"
	"testing"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/pkgmgr"
	"github.com/arthur-debert/doarch/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacmanUpdate(t *testing.T) {
	runner := executor.NewScripted()
	pac := pkgmgr.NewPacman(runner)

	err := pac.Update(context.Background())
	require.NoError(t, err)
	testutil.AssertSliceEqual(t, []string{"pacman -Syu --noconfirm"}, runner.Lines())
}

func TestPacmanInstall(t *testing.T) {
	runner := executor.NewScripted()
	pac := pkgmgr.NewPacman(runner)

	err := pac.Install(context.Background(), "git", "base-devel")
	require.NoError(t, err)
	testutil.AssertSliceEqual(t,
		[]string{"pacman -S --noconfirm --needed git base-devel"},
		runner.Lines())
}

func TestPacmanInstallNothing(t *testing.T) {
	runner := executor.NewScripted()
	pac := pkgmgr.NewPacman(runner)

	err := pac.Install(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runner.Calls(), "no packages should mean no invocation")
}

func TestPacmanInstallFile(t *testing.T) {
	runner := executor.NewScripted()
	pac := pkgmgr.NewPacman(runner)

	err := pac.InstallFile(context.Background(), "/tmp/build/paru-2.0.4-1-x86_64.pkg.tar.zst")
	require.NoError(t, err)
	testutil.AssertSliceEqual(t,
		[]string{"pacman -U --noconfirm /tmp/build/paru-2.0.4-1-x86_64.pkg.tar.zst"},
		runner.Lines())
}

func TestPacmanInstalled(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubOutput("pacman -Q paru", "paru 2.0.4-1\n")
	pac := pkgmgr.NewPacman(runner)

	state, err := pac.Installed(context.Background(), "paru")
	require.NoError(t, err)
	assert.True(t, state.Found)
	assert.Equal(t, "2.0.4-1", state.Version)
}

func TestPacmanInstalledAbsent(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubFail("pacman -Q ghost", 1)
	pac := pkgmgr.NewPacman(runner)

	state, err := pac.Installed(context.Background(), "ghost")
	require.NoError(t, err, "an unknown package is an answer, not a failure")
	assert.False(t, state.Found)
	assert.Empty(t, state.Version)
}

func TestPacmanInstalledQueryError(t *testing.T) {
	runner := executor.NewScripted()
	runner.StubFail("pacman -Q locked", 2)
	pac := pkgmgr.NewPacman(runner)

	_, err := pac.Installed(context.Background(), "locked")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrQueryFailed))
}

func TestHelperInstallRunsAsBuildUser(t *testing.T) {
	runner := executor.NewScripted()
	build := executor.Cred{Username: "aurbuild", UID: 1420, GID: 1420, Home: "/home/aurbuild"}
	helper := pkgmgr.NewHelper(runner, "paru", build)

	err := helper.Install(context.Background(), "spotify")
	require.NoError(t, err)
	testutil.AssertSliceEqual(t,
		[]string{"paru -S --noconfirm --needed spotify"},
		runner.Lines())

	calls := runner.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].As)
	assert.Equal(t, "aurbuild", calls[0].As.Username)
	assert.Equal(t, 1420, calls[0].As.UID)
}

func TestHelperPresent(t *testing.T) {
	runner := executor.NewScripted()
	helper := pkgmgr.NewHelper(runner, "paru", executor.Cred{Username: "aurbuild"})
	assert.True(t, helper.Present())

	runner.SetMissing("paru")
	assert.False(t, helper.Present())
}
