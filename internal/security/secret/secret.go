// Package secret hides how a credential value is stored and compared.
//
// Bearer secrets (API key tokens, refresh tokens) keep the generated value
// itself and compare in constant time. Human-entered values (OTP codes,
// passwords) keep only an argon2id hash. Callers never care which strategy
// backs a Secret.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

type Secret interface {
	// Encode returns the storable string form. For hashed secrets this is
	// the PHC string; for bearer secrets, the token itself.
	Encode() string

	// Matches reports whether candidate is the credential's value.
	Matches(candidate string) bool
}

type bearer string

// Bearer wraps an already-generated token value as a Secret.
func Bearer(token string) Secret { return bearer(token) }

func (b bearer) Encode() string { return string(b) }

func (b bearer) Matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(b), []byte(candidate)) == 1
}

// GenerateBearer creates a random bearer secret of n bytes. It returns the
// Secret plus the raw bytes, which token codecs embed into the credential
// string handed to the client. The canonical string form of a bearer secret
// is base64url (no padding) of its raw bytes.
func GenerateBearer(n int) (Secret, []byte, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return nil, nil, err
	}
	return bearer(base64.RawURLEncoding.EncodeToString(raw)), raw, nil
}

// Decode rebuilds a Secret from its stored string form, sniffing the
// strategy. Used when replaying creation and rotation events.
func Decode(encoded string) Secret {
	if strings.HasPrefix(encoded, "$argon2id$") {
		return hashed(encoded)
	}
	return bearer(encoded)
}
