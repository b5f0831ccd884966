package liveserver

import "context"

// Backgrounder runs an application's listener somewhere other than the caller's goroutine.
// It holds at most one background unit at a time.
type Backgrounder interface {
	// Launch starts serving app on addr and returns once the unit has been created.
	// It does not wait for the application to answer requests.
	Launch(ctx context.Context, app *App, addr string) error
	// Exited reports, without blocking, whether a launched unit has finished.
	// It is false when nothing has been launched.
	Exited() bool
	// WaitBriefly pauses between readiness probes. A non nil error means the unit died
	// and will never become ready.
	WaitBriefly() error
	// Stop asks the unit to finish and waits until it is gone.
	Stop(ctx context.Context) error
	// StopNoWait asks the unit to finish and returns straight away.
	StopNoWait()
}
