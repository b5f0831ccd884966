package liveserver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

// App is an HTTP application that can be served in the background.
type App struct {
	Name    string
	Handler http.Handler
	// ID is unique per App within the process, it doubles as the identify check payload.
	ID uint64
}

var lastAppID atomic.Uint64

func NewApp(name string, h http.Handler) *App {
	return &App{
		Name:    name,
		Handler: h,
		ID:      lastAppID.Inc(),
	}
}

// Identity is the body the app returns from the identify path.
func (a *App) Identity() string {
	return strconv.FormatUint(a.ID, 10)
}

// Factory builds the handler for a registered application.
type Factory func(ctx context.Context) http.Handler

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register names an application so a forked child can build its own copy of it.
// Registering the same name twice panics.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, ok := factories[name]; ok {
		panic(fmt.Sprintf("liveserver: application %q registered twice", name))
	}
	factories[name] = f
}

// Registered reports whether name has been registered.
func Registered(name string) bool {
	_, err := lookupFactory(name)
	return err == nil
}

// NewRegisteredApp builds the named application from its registered factory.
func NewRegisteredApp(ctx context.Context, name string) (*App, error) {
	f, err := lookupFactory(name)
	if err != nil {
		return nil, err
	}
	return NewApp(name, f(ctx)), nil
}

func lookupFactory(name string) (Factory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("application %q is not registered (known: %v)", name, registeredNames())
	}
	return f, nil
}

// registeredNames must be called with factoriesMu held.
func registeredNames() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
