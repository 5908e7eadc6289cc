package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"forumcli/internal/models"
)

var (
	// ErrNoCredential means the login response carried neither an
	// access_token nor a token field.
	ErrNoCredential = errors.New("server did not return a credential")
	// ErrTokenExpired means the token's exp claim is in the past (or absent).
	ErrTokenExpired = errors.New("token expired")
	// ErrNoSubject means the token payload carries neither an id nor a sub
	// claim, so no stable identity can be derived.
	ErrNoSubject = errors.New("token has no subject")
)

// decodeClaims reads the token's payload without verifying the signature.
// Signature verification is the server's job; the client only needs the
// claims and the expiry.
func decodeClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// normalizeIdentity maps raw claims onto the closed identity schema. The id
// falls back to the subject claim; unrecognized claims are dropped. A token
// without an expiry is treated as expired.
func normalizeIdentity(claims jwt.MapClaims, now time.Time) (*models.Identity, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || !exp.After(now) {
		return nil, ErrTokenExpired
	}

	sub := claimInt64(claims, "sub")
	id := claimInt64(claims, "id")
	if id == 0 {
		id = sub
	}
	if id == 0 {
		return nil, ErrNoSubject
	}

	return &models.Identity{
		ID:        id,
		Sub:       sub,
		Email:     claimString(claims, "email"),
		Name:      claimString(claims, "name"),
		Role:      models.ParseRole(claimString(claims, "role")),
		ExpiresAt: exp.Time,
	}, nil
}

// claimInt64 reads a numeric claim. JSON numbers decode as float64; some
// servers send ids as strings.
func claimInt64(claims jwt.MapClaims, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
