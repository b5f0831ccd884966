package system

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/termination"
)

type System struct {
	group    *errgroup.Group
	ctx      context.Context
	services []func(context.Context) error
	cleanups []func(ctx context.Context) error
}

func New(ctx context.Context) *System {
	group, ctx := errgroup.WithContext(ctx)
	return &System{
		group: group,
		ctx:   ctx,
	}
}

var terminationTestHook = termination.Handle

// Run starts every service and blocks until they have all returned. A termination signal
// is returned as termination.ErrTerminated after the services have stopped.
func (r *System) Run() (err error) {
	_, span := o11y.StartSpan(r.ctx, "system: run")
	defer o11y.End(span, &err)
	span.AddField("services", len(r.services))

	r.group.Go(func() error {
		return terminationTestHook(r.ctx)
	})

	for _, f := range r.services {
		// Capture the func, so we don't overwrite it when the goroutines start in parallel.
		f := f
		r.group.Go(func() error {
			return f(r.ctx)
		})
	}

	return r.group.Wait()
}

func (r *System) AddService(s func(ctx context.Context) error) {
	r.services = append(r.services, s)
}

func (r *System) AddCleanup(c func(ctx context.Context) error) {
	r.cleanups = append(r.cleanups, c)
}

// Cleanup runs the cleanups in the order they were added, logging any errors.
func (r *System) Cleanup(ctx context.Context) {
	for _, c := range r.cleanups {
		err := c(ctx)
		if err != nil {
			o11y.LogError(ctx, "system: cleanup error", err)
		}
	}
}
