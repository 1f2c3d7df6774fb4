// Package auth implements the authentication actor: registration and login
// against the credential store, bcrypt password hashing, and minting of the
// signed session tokens that key per-user actors.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a minted session token stays valid.
const TokenTTL = 60 * time.Minute

// ErrEmptySecret reports a missing HMAC signing key.
var ErrEmptySecret = errors.New("auth: signing secret must not be empty")

// Claims is the session-token payload: user id in the subject, plus the
// username for display without a store round trip.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer mints and verifies HMAC-SHA256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner returns a Signer keyed by secret. The secret is required; an
// unsigned or guessable token would hand out arbitrary user sessions.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl}, nil
}

// Mint produces a signed token for the given user.
func (s *Signer) Mint(userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token, returning its claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return &claims, nil
}
