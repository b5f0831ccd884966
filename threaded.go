package liveserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/circleci/liveserver/httpserver"
	"github.com/circleci/liveserver/identify"
	"github.com/circleci/liveserver/o11y"
)

// ThreadedWait is how long WaitBriefly waits for the serving goroutine to finish.
const ThreadedWait = 100 * time.Millisecond

// Threaded serves the application on a goroutine in the current process.
type Threaded struct {
	mu   sync.Mutex
	unit *goroutineUnit
}

type goroutineUnit struct {
	cancel context.CancelFunc
	done   chan struct{}
	// err is written before done is closed
	err error
}

func (u *goroutineUnit) exited() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

func (t *Threaded) Launch(ctx context.Context, app *App, addr string) (err error) {
	ctx, span := o11y.StartSpan(ctx, "liveserver: threaded launch")
	defer o11y.End(span, &err)
	span.AddField("app_name", app.Name)
	span.AddField("address", addr)

	// the server outlives the launch call, only the o11y provider is carried over
	sctx, cancel := context.WithCancel(o11y.WithProvider(context.Background(), o11y.FromContext(ctx)))
	u := &goroutineUnit{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	listening := make(chan error, 1)

	go func() {
		defer close(u.done)
		srv, err := httpserver.New(sctx, httpserver.Config{
			Name:    app.Name,
			Addr:    addr,
			Handler: identify.Middleware(app.Identity(), app.Handler),
		})
		listening <- err
		if err != nil {
			u.err = err
			return
		}
		u.err = srv.Serve(sctx)
	}()

	if err := <-listening; err != nil {
		cancel()
		<-u.done
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.unit = u
	return nil
}

func (t *Threaded) current() *goroutineUnit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unit
}

func (t *Threaded) Exited() bool {
	u := t.current()
	return u != nil && u.exited()
}

func (t *Threaded) WaitBriefly() error {
	u := t.current()
	if u == nil {
		time.Sleep(ThreadedWait)
		return nil
	}
	select {
	case <-u.done:
		if u.err != nil {
			return fmt.Errorf("%w: %v", ErrExited, u.err)
		}
		return ErrExited
	case <-time.After(ThreadedWait):
		return nil
	}
}

// Stop shuts the server down gracefully and waits for the serving goroutine to return.
func (t *Threaded) Stop(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "liveserver: threaded stop")
	defer o11y.End(span, &err)

	u := t.take()
	if u == nil {
		return nil
	}
	u.cancel()
	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server goroutine: %w", ctx.Err())
	}
}

func (t *Threaded) StopNoWait() {
	if u := t.take(); u != nil {
		u.cancel()
	}
}

func (t *Threaded) take() *goroutineUnit {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.unit
	t.unit = nil
	return u
}

var _ Backgrounder = (*Threaded)(nil)
