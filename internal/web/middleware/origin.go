package middleware

import "net/http"

// devOrigin is the front-end dev server; allowed only in dev mode.
const devOrigin = "http://localhost:1420"

// tauriOrigin is the packaged desktop shell, always allowed.
const tauriOrigin = "tauri://localhost"

// AllowOrigins rejects browser requests from unknown origins with 403.
// Requests without an Origin header (curl, the desktop shell on some
// platforms) pass through.
func AllowOrigins(devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !originAllowed(origin, devMode) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"origin not allowed"}`))
				return
			}
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, devMode bool) bool {
	if origin == tauriOrigin {
		return true
	}
	return devMode && origin == devOrigin
}
