package middleware

import (
	"net/http"
	"strings"

	"lumina/internal/auth"
	"lumina/internal/httputil"
)

// AuthMiddleware validates the Authorization: Bearer <token> header and puts
// the authenticated user ID into the request context. Health checks pass
// through unauthenticated; CORS pre-flights are handled before this layer.
func AuthMiddleware(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header, falling
// back to the access_token query parameter for websocket upgrades (browsers
// cannot set headers on WebSocket connections).
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
