// Package o11y builds the o11y provider used by test runs and the liveserver binary.
package o11y

import (
	"context"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/circleci/liveserver/config/secret"
	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/o11y/honeycomb"
)

type Config struct {
	// Format is one of text, json or none
	Format  string
	Writer  io.Writer
	Version string
	Service string

	// Optional
	Statsd           string
	StatsNamespace   string
	HoneycombEnabled bool
	HoneycombDataset string
	HoneycombKey     secret.String
	Debug            bool
}

// Setup initialises the o11y provider, returning a context carrying it and a cleanup
// func that flushes any pending spans and metrics.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	hostname, _ := os.Hostname()

	metrics, err := newMetrics(o, hostname)
	if err != nil {
		return nil, nil, err
	}

	conf := honeycomb.Config{
		Dataset:     o.HoneycombDataset,
		Key:         o.HoneycombKey.Raw(),
		Format:      o.Format,
		SendTraces:  o.HoneycombEnabled,
		Writer:      o.Writer,
		Metrics:     metrics,
		ServiceName: o.Service,
		Debug:       o.Debug,
	}
	if err := conf.Validate(); err != nil {
		_ = metrics.Close()
		return nil, nil, err
	}

	provider := honeycomb.New(conf)
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func newMetrics(o Config, hostname string) (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	return statsd.New(o.Statsd,
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags([]string{
			"service:" + o.Service,
			"version:" + o.Version,
			"hostname:" + hostname,
		}),
		statsd.WithoutTelemetry(),
	)
}
