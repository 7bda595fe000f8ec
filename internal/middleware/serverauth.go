package middleware

import (
	"crypto/subtle"
	"net/http"
)

// ServerAuthHeader carries the shared secret of trusted internal callers.
const ServerAuthHeader = "X-Server-Auth"

// ServerAuth rejects requests whose header does not match secret. An empty
// secret rejects everything.
func ServerAuth(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(ServerAuthHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"Forbidden"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
