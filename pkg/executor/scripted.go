package executor

import (
	"context"
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
)

// scriptedStub pairs a line-substring match with its canned response
type scriptedStub struct {
	substr string
	fn     func(Command) (Result, error)
}

// Scripted is a Runner for tests. Stubs match on a substring of the
// rendered command line; the most recently registered matching stub
// wins, and unmatched commands succeed with an empty Result. Every
// invocation is recorded in order.
type Scripted struct {
	stubs   []scriptedStub
	missing map[string]bool
	calls   []Command
}

// NewScripted creates an empty scripted runner where every command
// succeeds and every executable exists.
func NewScripted() *Scripted {
	return &Scripted{missing: make(map[string]bool)}
}

// Stub registers a static response for commands whose rendered line
// contains substr.
func (s *Scripted) Stub(substr string, result Result, err error) {
	s.StubFunc(substr, func(Command) (Result, error) { return result, err })
}

// StubFunc registers a dynamic response for commands whose rendered
// line contains substr.
func (s *Scripted) StubFunc(substr string, fn func(Command) (Result, error)) {
	s.stubs = append(s.stubs, scriptedStub{substr: substr, fn: fn})
}

// StubFail makes matching commands exit with the given status
func (s *Scripted) StubFail(substr string, exitCode int) {
	s.Stub(substr, Result{ExitCode: exitCode},
		errors.Newf(errors.ErrCommandExit, "scripted failure for %q", substr).
			WithDetail("exit_code", exitCode))
}

// StubOutput makes matching commands succeed with the given stdout
func (s *Scripted) StubOutput(substr, stdout string) {
	s.Stub(substr, Result{Stdout: stdout}, nil)
}

// SetMissing makes Exists report the executable as absent
func (s *Scripted) SetMissing(name string) {
	s.missing[name] = true
}

func (s *Scripted) Run(_ context.Context, cmd Command) (Result, error) {
	s.calls = append(s.calls, cmd)

	line := cmd.String()
	for i := len(s.stubs) - 1; i >= 0; i-- {
		if strings.Contains(line, s.stubs[i].substr) {
			return s.stubs[i].fn(cmd)
		}
	}
	return Result{}, nil
}

func (s *Scripted) Exists(name string) bool {
	return !s.missing[name]
}

// Calls returns every command run so far, in order
func (s *Scripted) Calls() []Command {
	return s.calls
}

// Lines returns the rendered command lines run so far, in order.
// Handy with order-sensitive slice assertions.
func (s *Scripted) Lines() []string {
	lines := make([]string, len(s.calls))
	for i, c := range s.calls {
		lines[i] = c.String()
	}
	return lines
}

// Reset forgets recorded calls but keeps stubs
func (s *Scripted) Reset() {
	s.calls = nil
}
