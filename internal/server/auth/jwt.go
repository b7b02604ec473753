// Package auth signs and verifies the stateless access tokens. Validation
// is pure signature + clock work: no store lookup happens on this path.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akorchagin/authd/internal/common"
)

// Claims are the access-token claims: registered subject/iat/exp plus the
// scopes granted at login.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// AccessClaims is the verified payload returned to callers.
type AccessClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scopes    []string
}

// GenerateToken mints an HS256 access token for userID with the given
// scopes, valid for validityDuration from now.
func GenerateToken(userID string, scopes []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Scopes: scopes,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of an access token and
// returns the claims. Failures map onto the shared taxonomy:
// common.ErrorTokenExpired when only the clock check fails,
// common.ErrorInvalidToken for anything malformed or tampered with.
func ParseToken(tokenString string, secretKey []byte) (*AccessClaims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrorInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrorTokenExpired
		}
		return nil, common.ErrorInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrorInvalidToken
	}

	out := &AccessClaims{
		UserID: claims.Subject,
		Scopes: claims.Scopes,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
