// Package credential generates, formats, hashes and checks the shapes of
// API keys, service keys and client secrets. It has no storage dependency.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Entropy sizes in bytes.
const (
	APIKeyBytes       = 24
	ServiceKeyBytes   = 24
	ClientSecretBytes = 16
	SessionIDBytes    = 32
)

// Reader is the entropy source. Tests may replace it; production code never
// does.
var Reader io.Reader = rand.Reader

// RandomBytes returns n bytes from the entropy source. A short read or a
// source failure is returned as an error; there is no fallback source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, fmt.Errorf("read %d random bytes: %w", n, err)
	}
	return b, nil
}

// EncodeURLSafe renders b as unpadded base64 using the URL alphabet
// ('-' and '_' in place of '+' and '/').
func EncodeURLSafe(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
