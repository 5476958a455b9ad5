// Package auth provides JWT session token generation and validation.
//
// Tokens are HS256-signed with a server secret: HEADER.PAYLOAD.SIGNATURE,
// where the signature is an HMAC over the first two parts. The server can
// trust the embedded claims without a database lookup on every request, as
// long as the secret stays out of git.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims embedded in each session token.
// jwt.RegisteredClaims contributes the standard ExpiresAt/IssuedAt fields.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// tokenDuration is how long a session token stays valid after being issued.
// A week covers a full field rotation without forcing re-login from a store
// parking lot with bad reception.
const tokenDuration = 7 * 24 * time.Hour

// GenerateToken creates a signed JWT for the given user.
func GenerateToken(userID, role, secret string) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a JWT string and returns the embedded claims.
// It rejects wrong or missing signatures, expired tokens, and tokens signed
// with an unexpected algorithm (algorithm confusion attack prevention).
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Guard against "alg:none" or RS256 tokens hitting an HS256 server.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
