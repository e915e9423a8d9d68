package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieCodec signs session tokens into cookie values so tampered cookies are
// rejected before the store is consulted.
type CookieCodec struct {
	secret []byte
	now    Clock
}

// NewCookieCodec returns a codec signing with secret.
func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{secret: []byte(secret), now: time.Now}
}

type cookieClaims struct {
	jwt.RegisteredClaims
}

// Encode wraps s into a signed cookie value.
func (c *CookieCodec) Encode(s Session) (string, error) {
	if s.Token == "" {
		return "", errors.New("session token is empty")
	}
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.Token,
			Subject:   s.Username,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode returns the session token carried by value. Any malformed, tampered or
// expired value yields "" and false.
func (c *CookieCodec) Decode(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	var claims cookieClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}
