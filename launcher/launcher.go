// Package launcher runs a profile's external process and reports its
// exit status unmodified. It performs no retries and no validation of
// the flags it forwards.
package launcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
	tracing "superres.io/hpc-launcher/tracing"
)

// StatusNotStarted is reported when the process could not be started,
// following the shell's "command not found" convention
const StatusNotStarted = 127

// Runner starts the invocation in a prepared environment and waits for it
type Runner interface {
	Run(ctx context.Context, env core.Environment, inv core.Invocation) (int, error)
}

type Launcher struct {
	runner Runner
}

func New(runner Runner) *Launcher {
	return &Launcher{runner: runner}
}

// Launch runs the profile's invocation once. The returned status is the
// child's exit status; err is only set when no child status exists.
func (l *Launcher) Launch(ctx context.Context, profile core.Profile) (int, error) {
	inv := profile.Invocation
	ctx, span := tracing.StartSpan(ctx, "launch "+profile.Name, "INTERNAL")
	span.WithAttributes(map[string]string{
		"profile":               profile.Name,
		"command":               strings.Join(inv.Argv(), " "),
		core.DeviceVisibilityEnv: inv.DeviceList(),
	})
	logger.InfoPrintf("launch: %s %s", profile.Name, inv.CommandLine())
	logger.DebugObj("environment", profile.Environment)

	status, err := l.runner.Run(ctx, profile.Environment, inv)
	if err != nil {
		logger.ErrorPrintf("launch: %s: %v", profile.Name, err)
	} else {
		logger.InfoPrintf("launch: %s exited with status %d", profile.Name, status)
	}
	span.SetExitStatus(status)
	tracing.EndSpan(span, err)
	return status, err
}

// ExitStatus converts the error returned by exec.Cmd.Run into the status a
// shell would report: the exit code, or 128+signal for a killed child
func ExitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return processStatus(exitErr.ProcessState), nil
	}
	return StatusNotStarted, err
}

func processStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
