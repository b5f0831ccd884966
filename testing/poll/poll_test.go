package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestForIt(t *testing.T) {
	ctx := context.Background()

	t.Run("stops when asked", func(t *testing.T) {
		calls := 0
		err := ForIt(ctx, time.Second, func() (bool, error) {
			calls++
			return calls == 3, nil
		})
		assert.Check(t, err)
		assert.Check(t, cmp.Equal(calls, 3))
	})

	t.Run("returns the error it stopped with", func(t *testing.T) {
		err := ForIt(ctx, time.Second, func() (bool, error) {
			return true, errors.New("boom")
		})
		assert.Check(t, cmp.ErrorContains(err, "boom"))
	})

	t.Run("times out", func(t *testing.T) {
		start := time.Now()
		err := ForIt(ctx, 200*time.Millisecond, func() (bool, error) {
			return false, nil
		})
		assert.Check(t, errors.Is(err, context.DeadlineExceeded))
		assert.Check(t, time.Since(start) >= 200*time.Millisecond)
	})
}
