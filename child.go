package liveserver

import (
	"context"
	"errors"
	"os"

	"github.com/alecthomas/kong"

	o11yconfig "github.com/circleci/liveserver/config/o11y"
	"github.com/circleci/liveserver/httpserver"
	"github.com/circleci/liveserver/identify"
	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/system"
	"github.com/circleci/liveserver/termination"
)

type childConfig struct {
	App        string `env:"LIVESERVER_FORK_APP" required:"" help:"Registered application to serve."`
	Addr       string `env:"LIVESERVER_FORK_ADDR" required:"" help:"Address to listen on."`
	Identity   string `env:"LIVESERVER_FORK_IDENTITY" required:"" help:"Body returned from the identify path."`
	O11yFormat string `env:"LIVESERVER_O11Y_FORMAT" default:"text" enum:"text,json,none" help:"Log output format."`
}

// Init serves a registered application and exits when the process is a forked child.
// Otherwise it returns straight away. Call it before anything else in TestMain or main.
func Init() {
	if _, ok := os.LookupEnv(envForkApp); !ok {
		return
	}
	os.Exit(runChild())
}

func runChild() int {
	var cfg childConfig
	parser, err := kong.New(&cfg, kong.Name("liveserver-child"))
	if err == nil {
		_, err = parser.Parse([]string{})
	}
	if err != nil {
		_, _ = os.Stderr.WriteString("liveserver: bad child configuration: " + err.Error() + "\n")
		return 2
	}

	ctx, cleanup, err := o11yconfig.Setup(context.Background(), o11yconfig.Config{
		Format:  cfg.O11yFormat,
		Writer:  os.Stderr,
		Service: "liveserver-child",
		Version: "dev",
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("liveserver: o11y setup failed: " + err.Error() + "\n")
		return 2
	}
	defer cleanup(ctx)

	if err := serveChild(ctx, cfg); err != nil {
		o11y.LogError(ctx, "liveserver: child failed", err)
		return 1
	}
	return 0
}

func serveChild(ctx context.Context, cfg childConfig) (err error) {
	ctx, span := o11y.StartSpan(ctx, "liveserver: child "+cfg.App)
	defer o11y.End(span, &err)
	span.AddField("app_name", cfg.App)
	span.AddField("identity", cfg.Identity)
	span.AddField("address", cfg.Addr)
	span.AddField("pid", os.Getpid())

	app, err := NewRegisteredApp(ctx, cfg.App)
	if err != nil {
		return err
	}

	sys := system.New(ctx)
	_, err = httpserver.Load(ctx, httpserver.Config{
		Name:    app.Name,
		Addr:    cfg.Addr,
		Handler: identify.Middleware(cfg.Identity, app.Handler),
	}, sys)
	if err != nil {
		return err
	}

	err = sys.Run()
	if errors.Is(err, termination.ErrTerminated) {
		return nil
	}
	return err
}
