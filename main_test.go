package liveserver_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/circleci/liveserver"
	"github.com/circleci/liveserver/testapp"
)

const crasherName = "crasher"

func TestMain(m *testing.M) {
	testapp.Register()
	liveserver.Register(crasherName, func(_ context.Context) http.Handler {
		os.Exit(3)
		return nil
	})
	liveserver.Init()

	os.Exit(m.Run())
}
