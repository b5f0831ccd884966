package livecfg_test

import (
	"context"
	"os"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/liveserver"
	"github.com/circleci/liveserver/livecfg"
	"github.com/circleci/liveserver/testapp"
	"github.com/circleci/liveserver/testing/poll"
	"github.com/circleci/liveserver/testing/testcontext"
)

func TestMain(m *testing.M) {
	testapp.Register()
	liveserver.Init()
	os.Exit(m.Run())
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("LIVE", "")
		cfg, err := livecfg.Load()
		assert.Assert(t, err)
		assert.Check(t, cmp.DeepEqual(cfg, livecfg.Config{
			BootTimeout: 10 * time.Second,
			Strategy:    livecfg.StrategyForked,
		}))
	})

	t.Run("all set", func(t *testing.T) {
		t.Setenv("LIVE", "auto")
		t.Setenv("LIVE_BOOT_TIMEOUT", "3s")
		t.Setenv("LIVE_STRATEGY", "threaded")
		cfg, err := livecfg.Load()
		assert.Assert(t, err)
		assert.Check(t, cmp.DeepEqual(cfg, livecfg.Config{
			Live:        "auto",
			BootTimeout: 3 * time.Second,
			Strategy:    livecfg.StrategyThreaded,
		}))
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("LIVE_BOOT_TIMEOUT", "soon")
		_, err := livecfg.Load()
		assert.Check(t, cmp.ErrorContains(err, `env var: "LIVE_BOOT_TIMEOUT" caused an error`))
	})

	t.Run("bad strategy", func(t *testing.T) {
		t.Setenv("LIVE_STRATEGY", "spawned")
		_, err := livecfg.Load()
		assert.Check(t, cmp.ErrorContains(err, `not "spawned"`))
	})
}

func TestConfig_Mode(t *testing.T) {
	tests := []struct {
		live string
		want livecfg.Mode
	}{
		{live: "", want: livecfg.Disabled},
		{live: "http://example.com:8080", want: livecfg.External},
		{live: "https://example.com", want: livecfg.External},
		{live: "auto", want: livecfg.Auto},
		{live: "1", want: livecfg.Default},
		{live: "yes", want: livecfg.Default},
	}
	for _, tt := range tests {
		t.Run(tt.live, func(t *testing.T) {
			assert.Check(t, cmp.Equal(livecfg.Config{Live: tt.live}.Mode(), tt.want))
		})
	}
}

func TestLive_Disabled(t *testing.T) {
	live := livecfg.New(livecfg.Config{}, nil)
	assert.Check(t, !live.Enabled())

	_, err := live.Target(testcontext.Background())
	assert.Check(t, cmp.ErrorIs(err, livecfg.ErrDisabled))
	live.Shutdown()
}

func TestLive_ExternalTargets(t *testing.T) {
	tests := []struct {
		live     string
		wantHost string
		wantPort int
		wantURL  string
		wantErr  string
	}{
		{
			live:     "http://example.com:8080",
			wantHost: "example.com",
			wantPort: 8080,
			wantURL:  "http://example.com:8080",
		},
		{
			live:     "https://example.com/",
			wantHost: "example.com",
			wantPort: 443,
			wantURL:  "https://example.com:443",
		},
		{
			live:     "http://10.0.0.1/api/",
			wantHost: "10.0.0.1",
			wantPort: 80,
			wantURL:  "http://10.0.0.1:80/api",
		},
		{
			live:     "on",
			wantHost: "127.0.0.1",
			wantPort: 4567,
			wantURL:  "http://127.0.0.1:4567",
		},
		{
			live:    "httpnope",
			wantErr: "no host",
		},
	}
	for _, tt := range tests {
		t.Run(tt.live, func(t *testing.T) {
			live := livecfg.New(livecfg.Config{Live: tt.live}, nil)
			assert.Check(t, live.Enabled())

			target, err := live.Target(testcontext.Background())
			if tt.wantErr != "" {
				assert.Check(t, cmp.ErrorContains(err, tt.wantErr))
				return
			}
			assert.Assert(t, err)
			assert.Check(t, cmp.Equal(target.Host(), tt.wantHost))
			assert.Check(t, cmp.Equal(target.Port(), tt.wantPort))
			assert.Check(t, cmp.Equal(target.URL(), tt.wantURL))
		})
	}
}

func TestLive_Auto(t *testing.T) {
	for _, strategy := range []string{livecfg.StrategyThreaded, livecfg.StrategyForked} {
		strategy := strategy
		t.Run(strategy, func(t *testing.T) {
			ctx := testcontext.Background()
			app := liveserver.NewApp(testapp.Name, testapp.New(ctx))
			live := livecfg.New(livecfg.Config{
				Live:        "auto",
				BootTimeout: 10 * time.Second,
				Strategy:    strategy,
			}, app)

			target, err := live.Target(ctx)
			assert.Assert(t, err)
			assert.Check(t, cmp.Equal(target.Host(), "127.0.0.1"))
			assert.Check(t, target.Port() > 0)
			url := target.URL()
			assert.Check(t, liveserver.Probe(ctx, url, app.Identity(), time.Second))

			again, err := live.Target(ctx)
			assert.Assert(t, err)
			assert.Check(t, again == target)

			live.Shutdown()
			poll.AssertIt(ctx, t, 10*time.Second, func() (bool, error) {
				return !liveserver.Probe(ctx, url, app.Identity(), time.Second), nil
			})
		})
	}
}

type fakeM struct {
	ran bool
}

func (f *fakeM) Run() int {
	f.ran = true
	return 7
}

func TestRunTests(t *testing.T) {
	ctx := context.Background()
	app := liveserver.NewApp(testapp.Name, testapp.New(testcontext.Background()))
	live := livecfg.New(livecfg.Config{Live: "auto", Strategy: livecfg.StrategyThreaded}, app)
	target, err := live.Target(testcontext.Background())
	assert.Assert(t, err)
	url := target.URL()

	m := &fakeM{}
	assert.Check(t, cmp.Equal(livecfg.RunTests(m, live), 7))
	assert.Check(t, m.ran)

	poll.AssertIt(ctx, t, 10*time.Second, func() (bool, error) {
		return !liveserver.Probe(ctx, url, app.Identity(), time.Second), nil
	})
}
