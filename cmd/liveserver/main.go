// Command liveserver serves the demo application on a fixed address, so tests can run
// against a server they did not boot themselves (LIVE=http://...).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/circleci/liveserver"
	o11yconfig "github.com/circleci/liveserver/config/o11y"
	"github.com/circleci/liveserver/config/secret"
	"github.com/circleci/liveserver/httpserver"
	"github.com/circleci/liveserver/identify"
	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/system"
	"github.com/circleci/liveserver/termination"
	"github.com/circleci/liveserver/testapp"
)

var version = "dev"

type cli struct {
	Addr            string        `default:"127.0.0.1:4567" env:"LIVESERVER_ADDR" help:"Address to listen on."`
	Identity        string        `env:"LIVESERVER_IDENTITY" help:"If set, answer /__identify__ with this value."`
	ShutdownTimeout time.Duration `default:"10s" env:"LIVESERVER_SHUTDOWN_TIMEOUT" help:"How long in flight requests get on shutdown."`

	O11yFormat string `default:"text" enum:"text,json,none" env:"LIVESERVER_O11Y_FORMAT" name:"o11y-format" help:"Log format (text, json or none)."`
	Statsd     string `env:"LIVESERVER_STATSD" help:"DogStatsD address to send metrics to."`
	Debug      bool   `env:"LIVESERVER_DEBUG" help:"Log honeycomb transmission details."`

	HoneycombEnabled bool          `env:"LIVESERVER_HONEYCOMB_ENABLED" help:"Send traces to honeycomb."`
	HoneycombDataset string        `default:"liveserver" env:"LIVESERVER_HONEYCOMB_DATASET" help:"Honeycomb dataset to send traces to."`
	HoneycombKey     secret.String `env:"LIVESERVER_HONEYCOMB_KEY" help:"Honeycomb API key."`
}

func main() {
	testapp.Register()
	liveserver.Init()

	c := cli{}
	kong.Parse(&c,
		kong.Name("liveserver"),
		kong.Description("Serve the demo application until interrupted."),
	)

	err := run(c)
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c cli) (err error) {
	ctx, cleanup, err := o11yconfig.Setup(context.Background(), o11yConfig(c))
	if err != nil {
		return err
	}
	defer cleanup(ctx)

	ctx, span := o11y.StartSpan(ctx, "main: run")
	defer o11y.End(span, &err)

	h := testapp.New(ctx)
	if c.Identity != "" {
		h = identify.Middleware(c.Identity, h)
	}

	sys := system.New(ctx)
	srv, err := httpserver.Load(ctx, httpserver.Config{
		Name:            testapp.Name,
		Addr:            c.Addr,
		Handler:         h,
		ShutdownTimeout: c.ShutdownTimeout,
	}, sys)
	if err != nil {
		return err
	}
	o11y.Log(ctx, "liveserver: listening", o11y.Field("address", srv.Addr()))

	return sys.Run()
}

func o11yConfig(c cli) o11yconfig.Config {
	return o11yconfig.Config{
		Format:           c.O11yFormat,
		Writer:           os.Stderr,
		Version:          version,
		Service:          "liveserver",
		Statsd:           c.Statsd,
		StatsNamespace:   "liveserver",
		HoneycombEnabled: c.HoneycombEnabled,
		HoneycombDataset: c.HoneycombDataset,
		HoneycombKey:     c.HoneycombKey,
		Debug:            c.Debug,
	}
}
