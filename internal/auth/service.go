package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSecret is returned when tokens are used without a configured secret.
	ErrNoSecret = errors.New("jwt secret is not configured")
	// ErrMissingToken is returned when a token is required but absent.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier resolves the display name of a connecting client.
// Token issuance belongs to the login service; this side only verifies.
type Verifier struct {
	cfg      *JWTConfig
	required bool
}

// NewVerifier creates a verifier. A required verifier rejects connections without a valid token.
func NewVerifier(cfg *JWTConfig, required bool) *Verifier {
	return &Verifier{cfg: cfg, required: required}
}

// Required reports whether anonymous connections are refused.
func (v *Verifier) Required() bool {
	return v != nil && v.required
}

// Identify returns the display name carried by token, or fallback when no token is given
// and tokens are optional. An empty result means the caller should pick the default name.
func (v *Verifier) Identify(token, fallback string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if v.Required() {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(fallback), nil
	}
	if v == nil || v.cfg == nil || len(v.cfg.Secret) == 0 {
		if v.Required() {
			return "", ErrNoSecret
		}
		return strings.TrimSpace(fallback), nil
	}

	claims, err := ValidateToken(v.cfg, token)
	if err != nil {
		if v.Required() {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return strings.TrimSpace(fallback), nil
	}

	if name := strings.TrimSpace(claims.Username); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(claims.Subject); name != "" {
		return name, nil
	}
	return strings.TrimSpace(fallback), nil
}
