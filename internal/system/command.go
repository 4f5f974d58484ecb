// Package system defines the external collaborators the engine drives —
// package manager, filesystem, database server, service manager, and
// certificate utility — together with their real host implementations.
// Every interface here exists so tests can substitute a recording fake.
package system

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CmdResult captures one external command invocation's outputs.
type CmdResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited zero.
func (r CmdResult) Success() bool { return r.ExitCode == 0 }

// Diagnostic returns the most useful text for an error message: stderr when
// present, otherwise stdout.
func (r CmdResult) Diagnostic() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// CommandRunner executes external commands. A non-zero exit is reported in
// the CmdResult, not as an error; the error return is reserved for failures
// to execute at all (binary missing, context cancelled).
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CmdResult, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CmdResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CmdResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

var _ CommandRunner = ExecRunner{}
