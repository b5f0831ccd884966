package httpserver

import (
	"context"
	"fmt"

	"github.com/circleci/liveserver/system"
)

// Load creates the server and adds its accept loop to sys.
func Load(ctx context.Context, cfg Config, sys *system.System) (*HTTPServer, error) {
	server, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error starting %q server: %w", cfg.Name, err)
	}

	sys.AddService(server.Serve)
	return server, nil
}
