// Package middleware provides the auth and origin checks in front of
// the engine's API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireToken enforces bearer-token auth. In dev mode, or when no
// token is configured, everything passes; the engine then binds to
// loopback only.
func RequireToken(token string, devBypass bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if devBypass || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := bearerToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return auth[len(prefix):]
	}
	return ""
}
