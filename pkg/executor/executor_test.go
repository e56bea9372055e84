package executor_test

import (
	"context"
	"testing"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      executor.Command
		expected string
	}{
		{
			name:     "bare command",
			cmd:      executor.Command{Name: "pacman"},
			expected: "pacman",
		},
		{
			name:     "with args",
			cmd:      executor.Command{Name: "pacman", Args: []string{"-S", "--noconfirm", "htop"}},
			expected: "pacman -S --noconfirm htop",
		},
		{
			name:     "quotes args with spaces",
			cmd:      executor.Command{Name: "install", Args: []string{"-m755", "a file"}},
			expected: "install -m755 'a file'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.String())
		})
	}
}

func TestRun_Success(t *testing.T) {
	r := executor.New()

	res, err := r.Run(context.Background(), executor.Command{
		Name: "sh", Args: []string{"-c", "echo hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_NonZeroExit(t *testing.T) {
	r := executor.New()

	res, err := r.Run(context.Background(), executor.Command{
		Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"},
	})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCommandExit))
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRun_MissingExecutable(t *testing.T) {
	r := executor.New()

	_, err := r.Run(context.Background(), executor.Command{Name: "doarch-no-such-tool"})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrToolMissing))
}

func TestRun_WorkingDirAndEnv(t *testing.T) {
	r := executor.New()
	dir := t.TempDir()

	res, err := r.Run(context.Background(), executor.Command{
		Name: "sh", Args: []string{"-c", "pwd; printf %s \"$DOARCH_TEST_VALUE\""},
		Dir: dir,
		Env: []string{"DOARCH_TEST_VALUE=set"},
	})

	require.NoError(t, err)
	assert.Contains(t, res.Stdout, dir)
	assert.Contains(t, res.Stdout, "set")
}

func TestRun_Cancelled(t *testing.T) {
	r := executor.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, executor.Command{Name: "sh", Args: []string{"-c", "sleep 5"}})

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCommandRun))
}

func TestExists(t *testing.T) {
	r := executor.New()

	assert.True(t, r.Exists("sh"))
	assert.False(t, r.Exists("doarch-no-such-tool"))
}

func TestScripted_RecordsInOrder(t *testing.T) {
	s := executor.NewScripted()

	_, _ = s.Run(context.Background(), executor.Command{Name: "pacman", Args: []string{"-S", "--noconfirm", "htop"}})
	_, _ = s.Run(context.Background(), executor.Command{Name: "pacman", Args: []string{"-S", "--noconfirm", "vim"}})

	assert.Equal(t, []string{
		"pacman -S --noconfirm htop",
		"pacman -S --noconfirm vim",
	}, s.Lines())
}

func TestScripted_StubMatching(t *testing.T) {
	s := executor.NewScripted()
	s.StubOutput("pacman -Q paru", "paru 2.0.4-1\n")
	s.StubFail("git clone", 128)

	res, err := s.Run(context.Background(), executor.Command{Name: "pacman", Args: []string{"-Q", "paru"}})
	require.NoError(t, err)
	assert.Equal(t, "paru 2.0.4-1\n", res.Stdout)

	res, err = s.Run(context.Background(), executor.Command{Name: "git", Args: []string{"clone", "--depth", "1", "x"}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCommandExit))
	assert.Equal(t, 128, res.ExitCode)

	// Unmatched commands succeed
	_, err = s.Run(context.Background(), executor.Command{Name: "systemctl", Args: []string{"daemon-reload"}})
	assert.NoError(t, err)
}

func TestScripted_LaterStubWins(t *testing.T) {
	s := executor.NewScripted()
	s.StubFail("git clone", 1)
	s.StubOutput("git clone", "")

	_, err := s.Run(context.Background(), executor.Command{Name: "git", Args: []string{"clone", "repo"}})
	assert.NoError(t, err)
}

func TestScripted_Exists(t *testing.T) {
	s := executor.NewScripted()
	assert.True(t, s.Exists("paru"))

	s.SetMissing("paru")
	assert.False(t, s.Exists("paru"))
}
