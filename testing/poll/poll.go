// Package poll provides test assertions that wait for a condition to hold.
package poll

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/circleci/liveserver/internal/poll"
)

type it func() (stop bool, err error)

// Interval is the pause between attempts used by ForIt and AssertIt.
const Interval = 50 * time.Millisecond

// AssertIt will periodically call it up to duration. It is a function that returns
// a bool to stop the polling, and a resultant error. This function will assert that
// no error was returned.
func AssertIt(ctx context.Context, t *testing.T, duration time.Duration, it it) {
	t.Helper()
	err := ForIt(ctx, duration, it)
	assert.NilError(t, err)
}

// ForIt will periodically call it up to duration. It is a function that returns
// a bool to stop the polling, and a resultant error.
func ForIt(ctx context.Context, duration time.Duration, it it) error {
	return poll.Until(ctx, duration, poll.Sleep(Interval), it)
}
