package request

import (
	"net/http"
)

// BodyLimit caps request bodies at maxBytes. Readers past the cap get an
// *http.MaxBytesError, which the decoder turns into a 413 envelope.
// Apply it before anything reads the body.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
