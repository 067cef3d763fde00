package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/bulksend/bulksend/internal/pkg"
)

// APIKeyHeader is the header carrying the configured static API key.
const APIKeyHeader = "X-API-Key"

// Auth creates middleware that requires the request's X-API-Key header to
// match apiKey exactly, compared in constant time. There is no per-caller
// identity: a single key authorizes the whole API surface.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				pkg.Error(w, http.StatusUnauthorized, "missing "+APIKeyHeader+" header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				pkg.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
