// internal/club/secret.go
package club

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// HashSecret generates a salted Argon2id hash of the treasurer secret,
// suitable for placing in the service configuration.
func HashSecret(secret string) (hash, salt string, err error) {
	rawSalt := make([]byte, 16)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", err
	}

	rawHash := argon2.IDKey([]byte(secret), rawSalt, 1, 64*1024, 4, 32)

	return base64.StdEncoding.EncodeToString(rawHash),
		base64.StdEncoding.EncodeToString(rawSalt), nil
}

// VerifySecret compares a presented secret with a salted hash.
func VerifySecret(secret, salt, hash string) (bool, error) {
	decodedSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	comparisonHash := argon2.IDKey([]byte(secret), decodedSalt, 1, 64*1024, 4, 32)

	return subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1, nil
}
