// Package livecfg decides, from the environment, whether a test run talks to a live server
// and where that server is. LIVE selects the mode:
//
//	unset or empty   live tests are skipped
//	http...          an already running server at that URL
//	auto             the application is booted locally by this process
//	anything else    a server at DefaultURL
package livecfg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/circleci/liveserver"
	"github.com/circleci/liveserver/config/env"
	"github.com/circleci/liveserver/o11y"
)

// DefaultURL is where a live server is expected when LIVE is set to anything but a URL or auto.
const DefaultURL = "http://127.0.0.1:4567"

const (
	StrategyForked   = "forked"
	StrategyThreaded = "threaded"
)

var ErrDisabled = errors.New("live server disabled (LIVE is not set)")

type Mode int

const (
	Disabled Mode = iota
	External
	Auto
	Default
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case External:
		return "external"
	case Auto:
		return "auto"
	case Default:
		return "default"
	}
	return "unknown"
}

type Config struct {
	// Live is the raw LIVE value
	Live        string
	BootTimeout time.Duration
	Strategy    string
}

// Load reads LIVE, LIVE_BOOT_TIMEOUT and LIVE_STRATEGY.
func Load() (Config, error) {
	cfg := Config{
		BootTimeout: liveserver.DefaultBootTimeout,
		Strategy:    StrategyForked,
	}

	l := env.NewLoader()
	l.String(&cfg.Live, "LIVE")
	l.Duration(&cfg.BootTimeout, "LIVE_BOOT_TIMEOUT")
	l.String(&cfg.Strategy, "LIVE_STRATEGY")
	if err := l.Err(); err != nil {
		return Config{}, err
	}

	switch cfg.Strategy {
	case StrategyForked, StrategyThreaded:
	default:
		return Config{}, fmt.Errorf("LIVE_STRATEGY must be %q or %q, not %q",
			StrategyForked, StrategyThreaded, cfg.Strategy)
	}
	return cfg, nil
}

func (c Config) Mode() Mode {
	switch {
	case c.Live == "":
		return Disabled
	case strings.HasPrefix(c.Live, "http"):
		return External
	case c.Live == "auto":
		return Auto
	}
	return Default
}

// Target is somewhere a live server is listening.
type Target interface {
	Host() string
	Port() int
	URL() string
}

type Live struct {
	cfg Config
	app *liveserver.App

	once   sync.Once
	target Target
	err    error

	mu     sync.Mutex
	server *liveserver.Server
}

// New returns a Live for app. In forked auto mode app must have been registered.
func New(cfg Config, app *liveserver.App) *Live {
	return &Live{
		cfg: cfg,
		app: app,
	}
}

func (l *Live) Enabled() bool {
	return l.cfg.Mode() != Disabled
}

// Target resolves the live server on first use, booting it in auto mode, and returns the
// same result on every later call.
func (l *Live) Target(ctx context.Context) (Target, error) {
	l.once.Do(func() {
		l.target, l.err = l.resolve(ctx)
	})
	return l.target, l.err
}

func (l *Live) resolve(ctx context.Context) (_ Target, err error) {
	ctx, span := o11y.StartSpan(ctx, "livecfg: resolve")
	defer o11y.End(span, &err)
	mode := l.cfg.Mode()
	span.AddField("mode", mode.String())

	switch mode {
	case Disabled:
		return nil, ErrDisabled
	case External:
		return parseTarget(l.cfg.Live)
	case Default:
		return parseTarget(DefaultURL)
	}

	var bg liveserver.Backgrounder = &liveserver.Forked{}
	if l.cfg.Strategy == StrategyThreaded {
		bg = &liveserver.Threaded{}
	}
	span.AddField("strategy", l.cfg.Strategy)

	s := liveserver.New(liveserver.Config{
		App:          l.app,
		Backgrounder: bg,
		BootTimeout:  l.cfg.BootTimeout,
	})
	l.mu.Lock()
	l.server = s
	l.mu.Unlock()

	if _, err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Shutdown asks a server booted by Target to stop without waiting for it.
// It does nothing for external servers or when nothing was booted.
func (l *Live) Shutdown() {
	l.mu.Lock()
	s := l.server
	l.server = nil
	l.mu.Unlock()

	if s != nil {
		s.StopNoWait()
	}
}

// RunTests runs m and then shuts down any server booted along the way, returning the
// exit code for os.Exit.
//
//	func TestMain(m *testing.M) {
//		liveserver.Init()
//		os.Exit(livecfg.RunTests(m, live))
//	}
func RunTests(m interface{ Run() int }, live *Live) int {
	defer live.Shutdown()
	return m.Run()
}

type urlTarget struct {
	u    *url.URL
	port int
}

func parseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad live server url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("bad live server url %q: no host", raw)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad live server url %q: %w", raw, err)
		}
	}
	return &urlTarget{u: u, port: port}, nil
}

func (t *urlTarget) Host() string { return t.u.Hostname() }
func (t *urlTarget) Port() int    { return t.port }

func (t *urlTarget) URL() string {
	return t.u.Scheme + "://" + net.JoinHostPort(t.Host(), strconv.Itoa(t.port)) + strings.TrimSuffix(t.u.Path, "/")
}
