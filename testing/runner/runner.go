package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/liveserver/internal/syncbuffer"
)

type Runner struct {
	baseEnv []string

	mu      sync.Mutex
	results []*Result
}

func New(baseEnv ...string) *Runner {
	return &Runner{
		baseEnv: baseEnv,
	}
}

// Start the binary with args, returning a Result which holds the logs of the process.
// The process is tracked so a later Stop will also stop it.
func (r *Runner) Start(binary string, args []string, extraEnv ...string) (*Result, error) {
	//#nosec:G204 // this is intentionally running a command
	cmd := exec.Command(binary, args...)

	cmd.Env = make([]string, 0, len(r.baseEnv)+len(extraEnv))
	cmd.Env = append(cmd.Env, r.baseEnv...)
	cmd.Env = append(cmd.Env, extraEnv...)

	result := &Result{
		cmd:  cmd,
		logs: &syncbuffer.SyncBuffer{},
		done: make(chan struct{}),
	}
	cmd.Stdout = io.MultiWriter(result.logs, os.Stdout)
	cmd.Stderr = io.MultiWriter(result.logs, os.Stderr)

	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}

	// the only Wait on the command, everything else watches done
	go func() {
		result.err = cmd.Wait()
		close(result.done)
	}()

	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()

	return result, nil
}

// Stop every process started by this runner that is still running.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	results := r.results
	r.results = nil
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, res := range results {
		res := res
		if res.Exited() {
			continue
		}
		g.Go(func() error {
			return res.Stop(ctx)
		})
	}
	return g.Wait()
}

type Result struct {
	cmd  *exec.Cmd
	logs *syncbuffer.SyncBuffer

	done chan struct{}
	err  error
}

func (r *Result) Logs() string {
	return r.logs.String()
}

func (r *Result) Pid() int {
	return r.cmd.Process.Pid
}

// Interrupt sends the process an INT signal without waiting for it to exit.
// If the process has already finished the returned error matches os.ErrProcessDone.
func (r *Result) Interrupt() error {
	if r.Exited() {
		return os.ErrProcessDone
	}
	return r.cmd.Process.Signal(os.Interrupt)
}

// Done is closed once the process has exited.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Exited reports, without blocking, whether the process has exited.
func (r *Result) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Err returns the exit error of the process. It is only meaningful once Done is closed.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the process exits, returning its exit error. If ctx ends first the
// process is killed.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		_ = r.cmd.Process.Kill()
		<-r.done
		return fmt.Errorf("wait for pid %d: %w", r.Pid(), ctx.Err())
	}
}

// Stop interrupts the process and waits for it to exit, returning the exit error.
func (r *Result) Stop(ctx context.Context) error {
	err := r.Interrupt()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to SIGINT: %w", err)
	}
	return r.Wait(ctx)
}
