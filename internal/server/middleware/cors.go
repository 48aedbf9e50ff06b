package middleware

import (
	"net/http"
	"strings"
)

// CORS sets cross-origin headers for the dashboard frontend. An empty
// allowlist permits any origin; "*" inside the list does the same.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(allowedOrigins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowlist []string, origin string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, o := range allowlist {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
