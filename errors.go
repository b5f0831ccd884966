package liveserver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBootTimeout matches any *BootTimeoutError.
	ErrBootTimeout = errors.New("timed out during boot")
	// ErrExited is returned when the background unit finished without reporting an error.
	ErrExited = errors.New("background server exited")
)

type BootTimeoutError struct {
	App     string
	Timeout time.Duration
}

func (e *BootTimeoutError) Error() string {
	return fmt.Sprintf("application %q timed out during boot after %s", e.App, e.Timeout)
}

func (e *BootTimeoutError) Is(target error) bool {
	return target == ErrBootTimeout //nolint:errorlint // sentinel comparison
}
