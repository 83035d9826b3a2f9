package analysis

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// captureLimit bounds how much of each output stream is retained for
	// diagnostics; the subprocess may write far more.
	captureLimit = 16 * 1024

	// killGracePeriod is how long a cancelled subprocess gets between
	// SIGTERM and SIGKILL.
	killGracePeriod = 3 * time.Second
)

// Output is the captured outcome of one subprocess run.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes the external analysis routine. The interface exists so
// tests can substitute a fake and production can bound execution with a
// context deadline.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs real subprocesses via os/exec.
type ExecRunner struct{}

// Run spawns name with args, streaming both output channels incrementally
// into bounded buffers. A cancelled context sends SIGTERM first and
// escalates to SIGKILL after a grace period. The returned error is non-nil
// only when the process could not be started or was cut short by the
// context; a plain non-zero exit is reported through ExitCode.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGracePeriod

	stdout := newCappedBuffer(captureLimit)
	stderr := newCappedBuffer(captureLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Output{ExitCode: -1}, err
	}

	err := cmd.Wait()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Non-zero exit is surfaced via ExitCode, not as a Run error.
		return out, nil
	}
	return out, err
}

// cappedBuffer keeps the first limit bytes written and drops the rest,
// noting the truncation. It is safe for the concurrent writes os/exec
// performs on the two stream goroutines.
type cappedBuffer struct {
	mu        sync.Mutex
	limit     int
	data      []byte
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - len(b.data)
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.data = append(b.data, p[:remaining]...)
		b.truncated = true
		return len(p), nil
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return string(b.data) + "\n... [output truncated]"
	}
	return string(b.data)
}
