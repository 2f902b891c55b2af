// Package accesstoken mints the short-lived JWT returned after a successful
// credential check, so downstream services can validate requests without a
// round trip to the log.
package accesstoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalid = errors.New("invalid access token")

type Claims struct {
	TenantID string `json:"tid"`
	// Kind identifies the credential that authenticated: "apikey" | "session".
	Kind string `json:"knd"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens with a symmetric key (HS256).
type Issuer struct {
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewIssuer(issuer string, secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{issuer: issuer, secret: secret, ttl: ttl}
}

func (i *Issuer) Issue(subject, tenant uuid.UUID, kind string) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenant.String(),
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Parse(tok string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: alg %v", ErrInvalid, t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalid
	}
	return &claims, nil
}
