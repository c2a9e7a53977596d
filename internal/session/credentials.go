package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialSource supplies the bearer token and session identifier issued by
// the external auth collaborator. The core only reads credentials.
type CredentialSource interface {
	AccessToken() string
	SessionID() string
}

// ErrTokenUnusable indicates the bearer token is empty, a placeholder, or
// already expired, and must not be sent to the Runtime.
var ErrTokenUnusable = errors.New("access token unusable")

// placeholderTokens are sentinel values some shells inject before real
// credential initialization completes.
var placeholderTokens = map[string]struct{}{
	"placeholder": {},
	"undefined":   {},
	"null":        {},
}

// ValidateToken performs client-side usability checks on a bearer token. The
// signature is NOT verified here; the Runtime stays authoritative. This only
// exists so the client can refuse obviously-dead credentials before opening
// connections.
func ValidateToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty", ErrTokenUnusable)
	}
	if _, ok := placeholderTokens[strings.ToLower(token)]; ok {
		return fmt.Errorf("%w: placeholder value", ErrTokenUnusable)
	}
	exp, ok := tokenExpiresAt(token)
	if ok && time.Until(exp) <= 0 {
		return fmt.Errorf("%w: expired at %s", ErrTokenUnusable, exp.Format(time.RFC3339))
	}
	return nil
}

// TokenUsable is the boolean form of ValidateToken.
func TokenUsable(token string) bool {
	return ValidateToken(token) == nil
}

// tokenExpiresAt extracts the exp claim without verifying the signature. A
// token whose exp cannot be parsed is treated as not expired; the server will
// 401 if it disagrees.
func tokenExpiresAt(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
