// Package vpn provides tunnel session management.
// This file contains the process runner used to launch openvpn and
// killall, optionally through a privilege-escalation front-end.
package vpn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/albanobattistella/eOVPN/common"
)

// ExitResult is the outcome of a finished launcher process.
type ExitResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns the trimmed non-empty streams, stdout first, one per line.
func (r ExitResult) Output() string {
	var parts []string
	for _, s := range []string{r.Stdout, r.Stderr} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Runner runs external commands.
type Runner interface {
	// Run executes name with args and waits for it to exit. When privileged
	// is true the command goes through the escalation front-end. A non-zero
	// exit is reported in ExitResult, not as an error.
	Run(ctx context.Context, privileged bool, name string, args ...string) (ExitResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Escalator prefixes privileged commands, e.g. "pkexec".
	Escalator string
	// WaitDelay bounds output collection once the launcher has exited.
	// A daemonizing child that keeps our pipes open cannot hold Run past it.
	WaitDelay time.Duration

	lookPath func(string) (string, error)
}

// NewExecRunner creates a runner escalating through escalator.
func NewExecRunner(escalator string) *ExecRunner {
	if escalator == "" {
		escalator = common.DefaultEscalationCommand
	}
	return &ExecRunner{
		Escalator: escalator,
		WaitDelay: common.LauncherWaitDelay,
		lookPath:  exec.LookPath,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, privileged bool, name string, args ...string) (ExitResult, error) {
	lookPath := r.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if _, err := lookPath(name); err != nil {
		return ExitResult{}, fmt.Errorf("%w: %s: %v", common.ErrLaunch, name, err)
	}

	program, argv := name, args
	if privileged {
		if _, err := lookPath(r.Escalator); err != nil {
			return ExitResult{}, fmt.Errorf("%w: %s: %v", common.ErrLaunch, r.Escalator, err)
		}
		program = r.Escalator
		argv = append([]string{name}, args...)
	}

	common.LogDebug("Exec: %s %s", program, strings.Join(argv, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay

	err := cmd.Run()
	result := ExitResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return result, fmt.Errorf("%w: %s: %v", common.ErrLaunch, program, ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	case errors.Is(err, exec.ErrWaitDelay):
		// The launcher exited cleanly; a detached child still holds stdio.
		result.ExitCode = cmd.ProcessState.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("%w: %s: %v", common.ErrLaunch, program, err)
	}
}
