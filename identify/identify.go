// Package identify answers a reserved health-check path with the identity of the
// application it wraps, so a readiness probe can tell "some server is on this port"
// apart from "our server is on this port".
package identify

import (
	"io"
	"net/http"
)

// Path is the reserved health-check path.
const Path = "/__identify__"

// Middleware responds to Path with identity, and forwards every other request to next
// unmodified.
func Middleware(identity string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, identity)
	})
}
