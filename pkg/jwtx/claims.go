package jwtx

import (
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultRole is the database role the gateway switches to for logged-in
// users.
const DefaultRole = "web_user"

// Claims are the claims the gateway puts in its bearer tokens. PostgREST
// switches to the database role named by Role for each request.
type Claims struct {
	jwt.RegisteredClaims

	// Database role for the request
	Role string `json:"role"`

	// Lower-cased login the token was issued to
	Login string `json:"login,omitempty"`

	// Display name returned next to the token by the login RPC
	UserName string `json:"user_name,omitempty"`
}

// NewGatewayClaims builds claims for login expiring at expire.
func NewGatewayClaims(role, login, userName string, now, expire time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expire),
			ID:        idx.NewAt(now).String(),
		},
		Role:     role,
		Login:    login,
		UserName: userName,
	}
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	// Check expired (exp)
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}

	// Check if a valid token isn't used before it is valid (nbf)
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateRole checks the token grants one of the allowed roles.
func (c *Claims) ValidateRole(allowed ...string) error {
	if len(allowed) == 0 {
		return nil // nothing to enforce
	}

	for _, role := range allowed {
		if c.Role == role {
			return nil
		}
	}

	return ErrRole
}
