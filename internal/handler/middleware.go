package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/zolachat/zola-api/shared/auth"
)

type contextKey struct{ name string }

var claimsContextKey = &contextKey{"session-claims"}

// requireAuth rejects requests without a valid bearer token and stores the
// session claims in the request context.
func requireAuth(jwtAuth auth.JWTAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondJSON(w, http.StatusUnauthorized, envelope{
					Success: false,
					Message: "Unauthorized",
				})
				return
			}

			claims, err := jwtAuth.ValidateSessionToken(token)
			if err != nil {
				respondJSON(w, http.StatusUnauthorized, envelope{
					Success: false,
					Message: "Unauthorized",
				})
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cors answers preflight requests and stamps the allowed origin on every
// response.
func cors(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// claimsFrom returns the session claims stored by requireAuth. The bool is
// false on routes that never passed through the middleware.
func claimsFrom(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.SessionClaims)
	return claims, ok
}
