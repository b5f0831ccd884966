// Package poll repeatedly checks a condition until it holds or a time limit passes.
package poll

import (
	"context"
	"time"
)

// Until calls it, then wait, until it asks to stop, wait returns an error, or
// duration elapses. On timeout the context error is returned.
func Until(ctx context.Context, duration time.Duration, wait func() error, it func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stop, err := it()
		if stop {
			return err
		}
		if err := wait(); err != nil {
			return err
		}
	}
}

// Sleep returns a wait func for Until that pauses for d.
func Sleep(d time.Duration) func() error {
	return func() error {
		time.Sleep(d)
		return nil
	}
}
