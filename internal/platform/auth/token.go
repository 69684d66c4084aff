package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrEmptySigningKey = errors.New("signing key is empty")

// TokenRequest describes the bearer token to mint.
type TokenRequest struct {
	Subject string
	Name    string
	Roles   []string
	Issuer  string
	TTL     time.Duration
}

// IssueToken signs an HS256 token for req, valid from now for req.TTL.
func IssueToken(key []byte, req TokenRequest, now time.Time) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptySigningKey
	}
	if req.TTL <= 0 {
		req.TTL = 8 * time.Hour
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   req.Subject,
			Issuer:    req.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.TTL)),
		},
		Name:  req.Name,
		Roles: req.Roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
