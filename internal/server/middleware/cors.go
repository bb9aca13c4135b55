package middleware

import (
	"net/http"
	"strings"

	"github.com/alanyoungcy/bondledger/internal/crypto"
)

// corsAllowHeaders are the request headers browser clients may send: the API
// key, the admin HMAC and the staker signature.
var corsAllowHeaders = strings.Join([]string{
	"Content-Type",
	"Authorization",
	"X-API-Key",
	crypto.HeaderTimestamp,
	crypto.HeaderSignature,
	crypto.HeaderOwnerNonce,
	crypto.HeaderOwnerSignature,
}, ", ")

const corsAllowMethods = "GET, POST, PUT, OPTIONS"

// CORS answers cross-origin requests from the configured server.cors_origins.
// "*" admits every origin; an empty list admits none. Preflights are answered
// here and never reach the API routes.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			ok := wildcard || allowed[strings.ToLower(origin)]
			if ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !ok {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
