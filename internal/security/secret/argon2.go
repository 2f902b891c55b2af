package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type params struct {
	memory      uint32 // KiB
	time        uint32
	parallelism uint8
	keyLen      uint32
}

var defaultParams = params{memory: 64 * 1024, time: 3, parallelism: 1, keyLen: 32}

type hashed string

// FromPlain hashes a human-entered value (OTP code, password) into a Secret.
// Only the argon2id PHC string survives; the plain value is never stored.
func FromPlain(plain string) (Secret, error) {
	if plain == "" {
		return nil, fmt.Errorf("empty secret")
	}
	phc, err := hash(defaultParams, plain)
	if err != nil {
		return nil, err
	}
	return hashed(phc), nil
}

func (h hashed) Encode() string { return string(h) }

func (h hashed) Matches(candidate string) bool {
	return verify(candidate, string(h))
}

// hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func hash(p params, plain string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.parallelism, p.keyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

func verify(plain, phc string) bool {
	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, dk
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var v int
	if n, _ := fmt.Sscanf(parts[2], "v=%d", &v); n != 1 || v != 19 {
		return false
	}
	var m, t, p int
	if n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); n != 3 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}
