package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the shortest HS256 secret accepted, in bytes. PostgREST
// refuses shorter JWT secrets too.
const MinSecretSize = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// HS256 signs and verifies gateway tokens with a shared secret, the way a
// PostgREST gateway configured with jwt-secret does.
type HS256 struct {
	key   []byte
	roles []string
}

var (
	_ Signer   = (*HS256)(nil)
	_ Verifier = (*HS256)(nil)
)

// NewHS256 creates an HS256 signer and verifier. When roles are given,
// Verify also rejects tokens for any other role.
func NewHS256(secret []byte, roles ...string) (*HS256, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("jwtx: secret must be at least %d bytes, got %d", MinSecretSize, len(secret))
	}
	return &HS256{key: secret, roles: roles}, nil
}

func (s *HS256) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify validates the JWT string and returns its parsed Claims.
func (s *HS256) Verify(tokenStr string) (*Claims, error) {
	// exp and nbf are checked below, with our own errors
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.Alg() {
			return nil, ErrAlgMismatch
		}
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, ErrAlgMismatch):
		return nil, ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSig
	case err != nil:
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}

	// Now check all the claim requirements
	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}
	if err := claims.ValidateRole(s.roles...); err != nil {
		return nil, err
	}

	return claims, nil
}
