package dissect

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"capconv/util"
)

// DefaultWaitDelay bounds how long Wait keeps draining pipes after the
// process was killed.
const DefaultWaitDelay = 5 * time.Second

// LocalRunner starts processes on this machine with os/exec.
type LocalRunner struct {
	// Env, when non-nil, replaces the child environment.
	Env []string
	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
	// Logger receives the command line at debug level.  Optional.
	Logger *util.Logger
}

// Start implements [Runner].  Cancelling ctx kills the child.
func (r *LocalRunner) Start(ctx context.Context, name string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.Env
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := util.NewTailBuffer(util.DefaultTailSize)
	cmd.Stderr = stderr

	if r.Logger != nil {
		r.Logger.Debug("exec: %s", cmd.String())
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &localProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type localProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *util.TailBuffer
}

func (p *localProcess) Stdout() io.Reader { return p.stdout }

func (p *localProcess) Wait() error { return p.cmd.Wait() }

func (p *localProcess) Stderr() string { return p.stderr.String() }
