// Package testapp is a small gin application used to exercise live servers.
package testapp

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleci/liveserver"
	"github.com/circleci/liveserver/httpserver/ginrouter"
)

// Name is the name the application is registered under for forking.
const Name = "testapp"

// New builds the application handler.
func New(ctx context.Context) http.Handler {
	r := ginrouter.Default(ctx, Name)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})

	r.Any("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		c.String(http.StatusOK, "%s %s", c.Request.Method, b)
	})

	r.GET("/status/:code", func(c *gin.Context) {
		code, err := strconv.Atoi(c.Param("code"))
		if err != nil || code < 200 || code > 599 {
			c.String(http.StatusBadRequest, "bad status code %q", c.Param("code"))
			return
		}
		c.Status(code)
	})

	r.GET("/slow", func(c *gin.Context) {
		ms, err := strconv.Atoi(c.DefaultQuery("ms", "100"))
		if err != nil || ms < 0 {
			c.String(http.StatusBadRequest, "bad ms %q", c.Query("ms"))
			return
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			c.String(http.StatusOK, "slept %dms", ms)
		case <-c.Request.Context().Done():
		}
	})

	return r
}

var registerOnce sync.Once

// Register makes the application available to forked live servers. It is safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		liveserver.Register(Name, New)
	})
}
