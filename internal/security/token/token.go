// Package token encodes and decodes the opaque bearer credentials handed to
// clients: API key tokens and session refresh tokens.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SecretLen is the exact raw length every embedded secret must have.
const SecretLen = 32

var (
	ErrMalformed = errors.New("malformed token")
	ErrBadPrefix = errors.New("unexpected token prefix")
	ErrBadSecret = errors.New("token secret must be 32 bytes")
)

// Codec packs an entity id and its bearer secret into one opaque credential
// string: "<prefix><sep>base64url(id)<sep>base64url(secret)".
//
// The tenant id is deliberately not embedded. The caller's tenant context
// supplies it at lookup time, so a token replayed under another tenant
// resolves to a stream that does not exist.
type Codec struct {
	prefix string
	sep    string
}

var (
	// APIKey tokens look like "KK.<id>.<secret>".
	APIKey = Codec{prefix: "KK", sep: "."}

	// Refresh tokens look like "RT:<id>:<secret>".
	Refresh = Codec{prefix: "RT", sep: ":"}
)

func (c Codec) Encode(id uuid.UUID, secret []byte) string {
	return c.prefix + c.sep +
		base64.RawURLEncoding.EncodeToString(id[:]) + c.sep +
		base64.RawURLEncoding.EncodeToString(secret)
}

// Decode splits and validates a credential string: exactly three segments,
// the literal prefix, a 16-byte entity id and a 32-byte secret.
func (c Codec) Decode(tok string) (uuid.UUID, []byte, error) {
	parts := strings.Split(tok, c.sep)
	if len(parts) != 3 {
		return uuid.Nil, nil, fmt.Errorf("%w: want 3 segments, got %d", ErrMalformed, len(parts))
	}
	if parts[0] != c.prefix {
		return uuid.Nil, nil, fmt.Errorf("%w: %q", ErrBadPrefix, parts[0])
	}
	rawID, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(rawID) != 16 {
		return uuid.Nil, nil, fmt.Errorf("%w: bad id segment", ErrMalformed)
	}
	sec, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad secret segment", ErrMalformed)
	}
	if len(sec) != SecretLen {
		return uuid.Nil, nil, fmt.Errorf("%w: got %d", ErrBadSecret, len(sec))
	}
	id, err := uuid.FromBytes(rawID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad id segment", ErrMalformed)
	}
	return id, sec, nil
}
