package launcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

// DefaultPrepareTimeout bounds each environment preparation command
const DefaultPrepareTimeout = 5 * time.Minute

// Dump the session environment NUL separated, base64 keeps it on one line
const captureEnv = "env -0 | base64 | tr -d '\\n'"

// ShellRunner prepares the environment in one interactive shell session,
// so module and venv state carries over, then starts the child from the
// captured environment with Exec. Output streams as the child writes it.
type ShellRunner struct {
	Timeout time.Duration
	Exec    *ExecRunner
}

func NewShellRunner() *ShellRunner {
	return &ShellRunner{Timeout: DefaultPrepareTimeout, Exec: NewExecRunner()}
}

// Prepare runs the environment commands and returns the resulting
// environment. A failing command yields its status and an error.
func (r *ShellRunner) Prepare(ctx context.Context, env core.Environment) ([]string, int, error) {
	session, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, StatusNotStarted, fmt.Errorf("launcher: cannot start shell session: %w", err)
	}
	defer session.Close()

	timeout := int(r.Timeout.Milliseconds())
	for _, step := range env.Commands() {
		logger.DebugPrintf("shell: %s", step)
		out, status, err := session.Run(ctx, step, runner.WithTimeout(timeout))
		if err != nil && status == 0 {
			status = StatusNotStarted
		}
		if err != nil || status != 0 {
			return nil, status, fmt.Errorf("launcher: %s: status %d: %s", step, status, strings.TrimSpace(out))
		}
	}
	out, status, err := session.Run(ctx, captureEnv, runner.WithTimeout(timeout))
	if err != nil || status != 0 {
		return nil, StatusNotStarted, fmt.Errorf("launcher: cannot capture environment: status %d: %v", status, err)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	if err != nil {
		return nil, StatusNotStarted, fmt.Errorf("launcher: cannot decode environment: %w", err)
	}
	var environ []string
	for _, kv := range strings.Split(string(data), "\x00") {
		if strings.Contains(kv, "=") {
			environ = append(environ, kv)
		}
	}
	return environ, 0, nil
}

func (r *ShellRunner) Run(ctx context.Context, env core.Environment, inv core.Invocation) (int, error) {
	if env.Empty() {
		return r.Exec.Run(ctx, env, inv)
	}
	environ, status, err := r.Prepare(ctx, env)
	if err != nil {
		return status, err
	}
	logger.DebugPrintf("shell: prepared %d environment variables", len(environ))
	child := *r.Exec
	child.Env = environ
	return child.Run(ctx, core.Environment{}, inv)
}
