package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "create.xyz"

	// PurposeMagicLink marks tokens that may be exchanged for a session.
	PurposeMagicLink = "magic_link"
)

// ErrWrongPurpose is returned when a token was minted for something else.
var ErrWrongPurpose = errors.New("token purpose mismatch")

// Claims defines the magic link payload.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwtlib.RegisteredClaims
}

// GenerateMagicLinkToken issues a signed token for email valid for ttl from now.
func GenerateMagicLinkToken(email, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Email:   email,
		Purpose: PurposeMagicLink,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseMagicLinkToken validates token as of now and returns its claims.
func ParseMagicLinkToken(token, secret string, now time.Time) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if claims.Purpose != PurposeMagicLink {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
