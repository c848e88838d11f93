package launcher

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	core "superres.io/hpc-launcher/core"
)

const DefaultShell = "/bin/bash"

// DefaultKillDelay is how long a cancelled child may take to exit after
// SIGTERM before it is killed
const DefaultKillDelay = 10 * time.Second

// ExecRunner starts the child directly with os/exec, streaming its output.
// When the environment needs preparing the child is exec'ed from a login
// shell after the module and venv commands succeed.
type ExecRunner struct {
	Shell string
	Dir   string
	// Env is the base environment, os.Environ() when nil
	Env       []string
	KillDelay time.Duration
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Shell:     DefaultShell,
		KillDelay: DefaultKillDelay,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Command builds the child process. Cancelling ctx sends SIGTERM, then
// SIGKILL once KillDelay has passed.
func (r *ExecRunner) Command(ctx context.Context, env core.Environment, inv core.Invocation) *exec.Cmd {
	var cmd *exec.Cmd
	argv := inv.Argv()
	if env.Empty() {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	} else {
		shell := r.Shell
		if len(shell) == 0 {
			shell = DefaultShell
		}
		steps := append(env.Commands(), "exec "+core.ShellJoin(argv))
		cmd = exec.CommandContext(ctx, shell, "-lc", strings.Join(steps, " && "))
	}
	base := r.Env
	if base == nil {
		base = os.Environ()
	}
	cmd.Env = append(append([]string(nil), base...), inv.Environ()...)
	cmd.Dir = r.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.KillDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultKillDelay
	}
	return cmd
}

func (r *ExecRunner) Run(ctx context.Context, env core.Environment, inv core.Invocation) (int, error) {
	cmd := r.Command(ctx, env, inv)
	err := cmd.Run()
	if err != nil && cmd.ProcessState != nil {
		// the child ran; its status wins over cancellation errors
		return processStatus(cmd.ProcessState), nil
	}
	return ExitStatus(err)
}
