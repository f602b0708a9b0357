package auth

import (
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"fmt"
	"net/http"
)

const TokenCookie = "token"

var _ contract.IdentityVerifier = (*Verifier)(nil)

// Verifier resolves the owner of a session token.
type Verifier struct {
	tokens *TokenManager
}

func NewVerifier(tokens *TokenManager) *Verifier {
	return &Verifier{tokens: tokens}
}

// Verify returns the identity carried by token, or ErrAuthFailure for a
// missing, malformed, forged or expired token.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: no token", errors.ErrAuthFailure)
	}
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuthFailure, err)
	}
	return domain.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// TokenFromRequest extracts the session token from the request cookies, "" when absent.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
