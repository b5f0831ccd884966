// Package ginrouter builds gin engines that trace every request through o11y.
package ginrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/circleci/liveserver/o11y"
)

var once sync.Once

func Default(ctx context.Context, serverName string) *gin.Engine {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	r := gin.New()
	r.Use(
		Middleware(o11y.FromContext(ctx), serverName),
		Recovery(),
	)

	r.UseRawPath = true

	return r
}

// Middleware opens a span per request, named after the matched route rather than the raw path.
func Middleware(provider o11y.Provider, serverName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		ctx := o11y.WithProvider(c.Request.Context(), provider)
		ctx, span := provider.StartSpan(ctx, fmt.Sprintf("%s %s", c.Request.Method, route))
		defer span.End()

		span.AddField("server_name", serverName)
		span.AddField("method", c.Request.Method)
		span.AddField("route", route)
		span.AddField("url", c.Request.URL.String())
		span.RecordMetric(o11y.Timing("handler", "server_name", "method", "route", "status"))

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		if errors.Is(ctx.Err(), context.Canceled) {
			// nginx convention for a client that went away before the response
			status = 499
		}
		span.AddField("status", status)
		if len(c.Errors) > 0 {
			span.AddField("gin_internal_error", c.Errors.String())
		}
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		c.AbortWithStatus(http.StatusInternalServerError)
		ctx := c.Request.Context()

		// one side of the connection went away, not a real panic
		if origErr, ok := err.(error); ok && errors.Is(origErr, http.ErrAbortHandler) {
			o11y.AddField(ctx, "error", origErr)
			return
		}

		o11y.AddField(ctx, "panic", fmt.Sprint(err))
		o11y.AddField(ctx, "error", fmt.Errorf("recovered panic: %v", err))
	})
}
