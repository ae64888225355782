package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/reelauth"
)

// AccessVerifier validates access tokens. *reelauth.Engine implements it.
type AccessVerifier interface {
	ValidateAccess(token string) (*reelauth.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (*reelauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*reelauth.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx the same way Guard does.
func WithIdentity(ctx context.Context, id *reelauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid bearer access token with
// 401 {"error":"unauthorized"}.
func Guard(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			id, err := verifier.ValidateAccess(token)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
