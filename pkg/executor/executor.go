package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/alessio/shellescape"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/rs/zerolog"
)

// Cred identifies the account a command runs as.
type Cred struct {
	Username string
	UID      int
	GID      int
	Home     string
}

// Command describes one external command invocation. Name and Args are
// passed to the kernel directly; nothing here goes through a shell.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory; empty inherits the process cwd
	Dir string

	// As runs the command under this account instead of the current
	// process user
	As *Cred

	// Env entries are appended to the inherited environment
	Env []string

	// Stream connects the command to the process's stdout/stderr so
	// long-running output (package installs, builds) stays visible.
	// Streamed stdout is not captured in the Result.
	Stream bool
}

// String renders the command as a copy-pasteable shell line
func (c Command) String() string {
	return shellescape.QuoteCommand(append([]string{c.Name}, c.Args...))
}

// Result carries what an invocation produced
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs external commands. doarch runs commands strictly
// sequentially; implementations need not be goroutine-safe.
type Runner interface {
	// Run executes the command. A clean exit returns a nil error; a
	// non-zero exit returns a COMMAND_EXIT error alongside the
	// result, and a command that could not start at all returns
	// COMMAND_RUN or TOOL_MISSING.
	Run(ctx context.Context, cmd Command) (Result, error)

	// Exists reports whether an executable is reachable via PATH
	Exists(name string) bool
}

// osRunner executes commands on the local machine
type osRunner struct {
	logger zerolog.Logger
}

// New creates a Runner executing on the local machine
func New() Runner {
	return &osRunner{logger: logging.GetLogger("executor")}
}

func (r *osRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	env := os.Environ()
	if cmd.As != nil {
		c.SysProcAttr = &syscall.SysProcAttr{
			Credential: &syscall.Credential{
				Uid: uint32(cmd.As.UID),
				Gid: uint32(cmd.As.GID),
			},
		}
		// The child sees the target account, not root's environment
		env = append(env,
			"HOME="+cmd.As.Home,
			"USER="+cmd.As.Username,
			"LOGNAME="+cmd.As.Username,
		)
	}
	c.Env = append(env, cmd.Env...)

	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		c.Stdout = os.Stdout
		c.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	logger := r.logger.With().Str("command", cmd.String()).Logger()
	if cmd.As != nil {
		logger = logger.With().Str("as", cmd.As.Username).Logger()
	}
	logger.Debug().Msg("running command")

	start := time.Now()
	err := c.Run()

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if err == nil {
		logger.Trace().Dur("duration", result.Duration).Msg("command succeeded")
		return result, nil
	}

	if ctx.Err() != nil {
		return result, errors.Wrapf(ctx.Err(), errors.ErrCommandRun,
			"command interrupted: %s", cmd.Name)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		logger.Debug().
			Int("exit_code", result.ExitCode).
			Str("stderr", result.Stderr).
			Msg("command exited non-zero")
		return result, errors.Wrapf(err, errors.ErrCommandExit,
			"%s exited with status %d", cmd.Name, result.ExitCode).
			WithDetail("command", cmd.String()).
			WithDetail("exit_code", result.ExitCode)
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return result, errors.Wrapf(err, errors.ErrToolMissing,
			"executable not found: %s", cmd.Name)
	}

	return result, errors.Wrapf(err, errors.ErrCommandRun,
		"failed to run %s", cmd.Name).WithDetail("command", cmd.String())
}

func (r *osRunner) Exists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
