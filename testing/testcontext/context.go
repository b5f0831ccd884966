// Package testcontext provides the root context for tests, carrying a working o11y
// provider so test runs get readable logs.
package testcontext

import (
	"context"

	"github.com/circleci/liveserver/config/o11y"
)

// ctx is a global singleton, initialised at package time as the beeline is process global.
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Setup(context.Background(), o11y.Config{
		Format:  "text",
		Service: "test-service",
		Version: "dev",
	})
	if err != nil {
		panic(err)
	}
	return cx
}
