// Package requesttime pins one "now" per request. The admin token check
// reads it through requestcontext.Now.
package requesttime

import (
	"net/http"
	"time"

	"scoring/pkg/requestcontext"
)

// Middleware stamps each request with time.Now.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps each request with clock(). Tests use it to freeze time
// across the whole middleware chain.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
