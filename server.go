package liveserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/circleci/liveserver/closer"
	"github.com/circleci/liveserver/httpclient"
	"github.com/circleci/liveserver/identify"
	"github.com/circleci/liveserver/internal/poll"
	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/portregistry"
)

const (
	DefaultHost         = "127.0.0.1"
	DefaultBootTimeout  = 10 * time.Second
	DefaultProbeTimeout = 50 * time.Millisecond
)

type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

type Config struct {
	App          *App
	Backgrounder Backgrounder

	// Optional
	Registry     *portregistry.Registry
	Host         string
	BootTimeout  time.Duration
	ProbeTimeout time.Duration
}

// Server starts one application in the background and tracks the port it listens on.
// Start and Stop must not be called concurrently on the same Server.
type Server struct {
	app          *App
	bg           Backgrounder
	registry     *portregistry.Registry
	host         string
	bootTimeout  time.Duration
	probeTimeout time.Duration

	mu       sync.Mutex
	port     int
	state    State
	launched bool
	// logCtx carries the o11y provider from Start for operations that take no context
	logCtx context.Context
}

func New(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = portregistry.Default()
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.BootTimeout == 0 {
		cfg.BootTimeout = DefaultBootTimeout
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Server{
		app:          cfg.App,
		bg:           cfg.Backgrounder,
		registry:     cfg.Registry,
		host:         cfg.Host,
		bootTimeout:  cfg.BootTimeout,
		probeTimeout: cfg.ProbeTimeout,
		logCtx:       context.Background(),
	}
}

// NewThreaded returns a Server that runs app on a goroutine.
func NewThreaded(app *App) *Server {
	return New(Config{App: app, Backgrounder: &Threaded{}})
}

// NewForked returns a Server that runs app in a child process. The app must be registered.
func NewForked(app *App) *Server {
	return New(Config{App: app, Backgrounder: &Forked{}})
}

// StartThreaded wraps h in a new App and starts it on a goroutine.
func StartThreaded(ctx context.Context, name string, h http.Handler) (*Server, error) {
	return NewThreaded(NewApp(name, h)).Start(ctx)
}

// StartForked builds the registered application and starts it in a child process.
func StartForked(ctx context.Context, name string) (*Server, error) {
	app, err := NewRegisteredApp(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewForked(app).Start(ctx)
}

func (s *Server) App() *App {
	return s.app
}

func (s *Server) Backgrounder() Backgrounder {
	return s.bg
}

func (s *Server) Host() string {
	return s.host
}

func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.Port()))
}

func (s *Server) URL() string {
	return "http://" + s.Addr()
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Start makes sure the application is answering on a local port. A port already recorded
// for the application is reused if the application still answers there, otherwise a free
// port is chosen and the application launched on it. Start blocks until the application
// answers its identify check, the background unit dies, or the boot timeout passes.
func (s *Server) Start(ctx context.Context) (_ *Server, err error) {
	ctx, span := o11y.StartSpan(ctx, "liveserver: start "+s.app.Name)
	defer o11y.End(span, &err)
	span.AddField("app_name", s.app.Name)
	span.AddField("identity", s.app.Identity())
	span.RecordMetric(o11y.Timing("liveserver.boot", "app_name", "reused"))

	s.mu.Lock()
	s.state = Starting
	s.logCtx = o11y.WithProvider(context.Background(), o11y.FromContext(ctx))
	s.mu.Unlock()
	defer func() {
		if err != nil {
			s.setState(Idle)
		}
	}()

	identity := s.app.Identity()
	if port, ok := s.registry.Lookup(identity); ok {
		s.setPort(port)
		if s.Responsive(ctx) {
			span.AddField("port", port)
			span.AddField("reused", true)
			s.setState(Running)
			return s, nil
		}
	}
	span.AddField("reused", false)

	port, err := findAvailablePort(s.host)
	if err != nil {
		return nil, err
	}
	span.AddField("port", port)
	s.setPort(port)
	s.registry.Record(identity, port)

	// one live unit per server, an earlier one that stopped answering is let go
	if s.launched {
		s.bg.StopNoWait()
	}
	err = s.bg.Launch(ctx, s.app, s.Addr())
	if err != nil {
		return nil, fmt.Errorf("launch %q: %w", s.app.Name, err)
	}
	s.launched = true

	err = poll.Until(ctx, s.bootTimeout, s.bg.WaitBriefly, func() (bool, error) {
		return s.Responsive(ctx), nil
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, &BootTimeoutError{App: s.app.Name, Timeout: s.bootTimeout}
	case err != nil:
		return nil, fmt.Errorf("boot %q: %w", s.app.Name, err)
	}

	s.setState(Running)
	return s, nil
}

func (s *Server) setPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = port
}

// Responsive reports whether the application answers its identify check on the current port.
// It never returns an error, any failure means false.
func (s *Server) Responsive(ctx context.Context) bool {
	if s.bg.Exited() {
		return false
	}
	port := s.Port()
	if port == 0 {
		return false
	}
	return Probe(ctx, s.URL(), s.app.Identity(), s.probeTimeout)
}

// probeClient is shared so every probe does not pay for a new transport. It keeps no
// per-response state, so what one address answers never affects probes of another.
var probeClient = httpclient.New(httpclient.Config{
	Name:              "liveserver-probe",
	DisableKeepAlives: true,
})

// Probe makes a single identify request to baseURL, reporting whether it answered with a 2XX
// and a body exactly equal to identity within timeout.
func Probe(ctx context.Context, baseURL, identity string, timeout time.Duration) bool {
	var body string
	req := httpclient.Request{
		Method:  http.MethodGet,
		URL:     baseURL + identify.Path,
		Route:   identify.Path,
		Decoder: httpclient.NewStringDecoder(&body),
		Timeout: timeout,
	}
	err := probeClient.Call(ctx, req)
	return err == nil && body == identity
}

// Stop stops the background unit and returns once it is gone.
func (s *Server) Stop(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "liveserver: stop "+s.app.Name)
	defer o11y.End(span, &err)
	span.AddField("app_name", s.app.Name)
	span.AddField("port", s.Port())

	s.setState(Stopping)
	err = s.bg.Stop(ctx)
	s.reset()
	return err
}

// StopNoWait asks the background unit to stop and returns without waiting for it.
func (s *Server) StopNoWait() {
	s.mu.Lock()
	ctx := s.logCtx
	s.mu.Unlock()
	o11y.Log(ctx, "liveserver: stop-no-wait",
		o11y.Field("app_name", s.app.Name),
		o11y.Field("port", s.Port()),
	)
	s.bg.StopNoWait()
	s.reset()
}

func (s *Server) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = 0
	s.state = Idle
	s.launched = false
}

func findAvailablePort(host string) (_ int, err error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	defer closer.ErrorHandler(ln, &err)

	return ln.Addr().(*net.TCPAddr).Port, nil
}
