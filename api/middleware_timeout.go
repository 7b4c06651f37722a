package api

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the request context. Store calls made with it fail once the
// deadline passes and the handler reports the failure.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
