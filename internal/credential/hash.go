package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const (
	maskVisible     = 8
	maskMinLen      = 12
	maskPlaceholder = "••••••••"
	maskRedacted    = "••••••••••••"
)

// Hash returns the hex SHA-256 digest of plaintext. It is unsalted so the
// digest can be used as an exact-match lookup key; key plaintexts carry at
// least 192 bits of entropy.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Equal compares two secrets in constant time with respect to their content.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Mask returns a display form of a credential: its first 8 characters
// followed by a fixed placeholder. Values shorter than 12 characters are
// fully redacted.
func Mask(plaintext string) string {
	if len(plaintext) < maskMinLen {
		return maskRedacted
	}
	return plaintext[:maskVisible] + maskPlaceholder
}
