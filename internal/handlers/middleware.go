package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/careloop/hms/libs/auth"
	"github.com/careloop/hms/libs/httpx"
)

// Identity is the caller resolved from a verified bearer credential.
type Identity struct {
	ID    string
	Email string
	Role  string
}

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

func contextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// RequireAuth verifies the Authorization bearer token and attaches the
// resolved identity to the request context. It rejects the request before
// any repository is touched. HS256 against the shared secret by default;
// RS256 via JWKS when a client is configured.
func RequireAuth(jwtSecret string, jwksClient *auth.JWKSClient) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := verifyToken(token, jwtSecret, jwksClient)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			identity := Identity{ID: claims.Sub, Email: claims.Email, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), identity)))
		})
	}
}

func verifyToken(token, jwtSecret string, jwksClient *auth.JWKSClient) (*auth.Claims, error) {
	if jwksClient != nil {
		header, err := auth.ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := jwksClient.Get(header.Kid)
			if err != nil {
				return nil, err
			}
			return auth.VerifyRS256(token, pub)
		}
	}
	return auth.ParseAndVerifyHS256(token, jwtSecret)
}

// RequireRole rejects authenticated callers whose role is not in the allow
// list. It must run after RequireAuth.
func RequireRole(roles ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}
