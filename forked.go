package liveserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/testing/runner"
)

// ForkedWait is the pause between readiness probes of a forked child.
const ForkedWait = 50 * time.Millisecond

const (
	envForkApp      = "LIVESERVER_FORK_APP"
	envForkAddr     = "LIVESERVER_FORK_ADDR"
	envForkIdentity = "LIVESERVER_FORK_IDENTITY"
)

// Forked serves the application from a child process running the current executable.
// The application must have been registered with Register, and the executable must call
// Init before anything else.
type Forked struct {
	// Binary overrides the executable the child runs. Defaults to os.Executable.
	Binary string
	// Env is added to the child's environment on top of the parent's.
	Env []string

	mu    sync.Mutex
	child *runner.Result
}

func (f *Forked) Launch(ctx context.Context, app *App, addr string) (err error) {
	_, span := o11y.StartSpan(ctx, "liveserver: forked launch")
	defer o11y.End(span, &err)
	span.AddField("app_name", app.Name)
	span.AddField("address", addr)

	if !Registered(app.Name) {
		return fmt.Errorf("forked application %q must be registered before launch", app.Name)
	}

	binary := f.Binary
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return fmt.Errorf("finding the current executable: %w", err)
		}
	}

	env := append([]string{
		envForkApp + "=" + app.Name,
		envForkAddr + "=" + addr,
		envForkIdentity + "=" + app.Identity(),
	}, f.Env...)

	// a test binary that never calls Init still must not run its tests again
	child, err := runner.New(os.Environ()...).Start(binary, []string{"-test.run=^$"}, env...)
	if err != nil {
		return err
	}
	span.AddField("pid", child.Pid())

	f.mu.Lock()
	defer f.mu.Unlock()
	f.child = child
	return nil
}

func (f *Forked) current() *runner.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.child
}

// Pid returns the process id of the current child, or 0 if there is none.
func (f *Forked) Pid() int {
	if c := f.current(); c != nil {
		return c.Pid()
	}
	return 0
}

// Logs returns everything the current child has written so far.
func (f *Forked) Logs() string {
	if c := f.current(); c != nil {
		return c.Logs()
	}
	return ""
}

func (f *Forked) Exited() bool {
	c := f.current()
	return c != nil && c.Exited()
}

func (f *Forked) WaitBriefly() error {
	time.Sleep(ForkedWait)
	c := f.current()
	if c == nil || !c.Exited() {
		return nil
	}
	return fmt.Errorf("%w: pid %d: %v\n%s", ErrExited, c.Pid(), c.Err(), c.Logs())
}

// Stop interrupts the child and waits for it to exit. If the child is still running when
// ctx is done it is killed.
func (f *Forked) Stop(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "liveserver: forked stop")
	defer o11y.End(span, &err)

	c := f.take()
	if c == nil {
		return nil
	}
	span.AddField("pid", c.Pid())

	err = c.Interrupt()
	switch {
	case errors.Is(err, os.ErrProcessDone):
		o11y.LogError(ctx, "liveserver: forked stop",
			o11y.NewWarning(fmt.Sprintf("child %d had already exited", c.Pid())),
			o11y.Field("logs", c.Logs()),
		)
		return nil
	case err != nil:
		return fmt.Errorf("interrupt pid %d: %w", c.Pid(), err)
	}

	err = c.Wait(ctx)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == -1:
		// the interrupt landed before the child installed its signal handler
		span.AddField("signaled", exitErr.String())
		return nil
	}
	return fmt.Errorf("child %d did not stop cleanly: %w", c.Pid(), err)
}

func (f *Forked) StopNoWait() {
	if c := f.take(); c != nil {
		_ = c.Interrupt()
	}
}

func (f *Forked) take() *runner.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.child
	f.child = nil
	return c
}

var _ Backgrounder = (*Forked)(nil)
