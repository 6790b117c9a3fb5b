package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for newly hashed operator passwords. Verification
// honours whatever parameters the stored hash encodes, so these can be raised
// without invalidating existing credentials.
const (
	hashIterations = 3
	hashMemoryKiB  = 64 * 1024
	hashThreads    = 1
	hashLength     = 32
	saltLength     = 16
)

// phcFieldCount is the number of $-separated fields in an argon2id PHC
// string: $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>
const phcFieldCount = 6

// phcHash is a decoded argon2id PHC string.
type phcHash struct {
	iterations uint32
	memoryKiB  uint32
	threads    uint8
	salt       []byte
	hash       []byte
}

// HashPassword derives an argon2id hash of password with a fresh random salt
// and returns it PHC-encoded, ready for config.OperatorConfig.PasswordHash.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashThreads, hashLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// VerifyPassword reports whether password matches the PHC-encoded hash.
// The comparison is constant time; an error means the stored hash could not
// be decoded, not that the password was wrong.
func VerifyPassword(password, encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), stored.salt,
		stored.iterations, stored.memoryKiB, stored.threads,
		uint32(len(stored.hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(stored.hash, candidate) == 1, nil
}

// parsePHC decodes an argon2id PHC string into its salt, hash, and cost
// parameters. Only the argon2id variant is accepted.
func parsePHC(encoded string) (phcHash, error) {
	var out phcHash

	fields := strings.Split(encoded, "$")
	if len(fields) != phcFieldCount {
		return out, fmt.Errorf("malformed password hash")
	}
	if fields[1] != "argon2id" {
		return out, fmt.Errorf("unsupported hash variant %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err scoped to this parse
		return out, fmt.Errorf("parsing hash version: %w", err)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.memoryKiB, &out.iterations, &out.threads); err != nil { //nolint:govet // shadow: err scoped to this parse
		return out, fmt.Errorf("parsing hash parameters: %w", err)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return out, fmt.Errorf("decoding salt: %w", err)
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return out, fmt.Errorf("decoding hash: %w", err)
	}

	return out, nil
}
