package auth

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"net/http"
)

type contextKey string

const identityKey contextKey = "identity"

// RequireIdentity rejects requests without a valid token cookie with 401 and
// stores the resolved identity in the request context otherwise.
func RequireIdentity(verifier contract.IdentityVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := verifier.Verify(TokenFromRequest(r))
		if err != nil {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by RequireIdentity.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
