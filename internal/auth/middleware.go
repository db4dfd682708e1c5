package auth

import (
	"net/http"
	"strings"

	"github.com/lumora-edu/mentor-gateway/internal/httputil"
)

// Middleware returns chi middleware that authenticates requests via the Gate.
// CORS preflights pass through untouched: browsers send them without headers.
func Middleware(gate *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			reqID := w.Header().Get("X-Request-ID")

			token := bearerToken(r)
			identity, err := gate.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteAuthError(w, reqID)
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header. Empty string
// for anything that is not a well-formed Bearer header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	token := strings.TrimPrefix(h, "Bearer ")
	if token == h {
		return ""
	}
	return token
}
