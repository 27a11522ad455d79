package credential

import (
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	keyPrefixRoot      = "sk-proj-"
	serviceKeyPrefix   = "svc-"
	clientSecretPrefix = "cs-"
	shortIDLen         = 8
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	labelStrip    = regexp.MustCompile(`[^a-z0-9-]`)
)

// SanitizeLabel lowercases label, collapses whitespace runs into a single
// hyphen and drops every character outside [a-z0-9-].
func SanitizeLabel(label string) string {
	s := strings.ToLower(label)
	s = whitespaceRun.ReplaceAllString(s, "-")
	return labelStrip.ReplaceAllString(s, "")
}

// KeyPrefix derives the prefix shared by all API keys of an application:
// sk-proj-{first 8 chars of applicationID}-{sanitized label}-
func KeyPrefix(applicationID, prefixLabel string) string {
	short := applicationID
	if len(short) > shortIDLen {
		short = short[:shortIDLen]
	}
	return keyPrefixRoot + short + "-" + SanitizeLabel(prefixLabel) + "-"
}

// NewAPIKey returns keyPrefix followed by 24 random bytes in URL-safe base64.
func NewAPIKey(keyPrefix string) (string, error) {
	b, err := RandomBytes(APIKeyBytes)
	if err != nil {
		return "", err
	}
	return keyPrefix + EncodeURLSafe(b), nil
}

// NewServiceKey returns svc- followed by 24 random bytes in URL-safe base64.
func NewServiceKey() (string, error) {
	b, err := RandomBytes(ServiceKeyBytes)
	if err != nil {
		return "", err
	}
	return serviceKeyPrefix + EncodeURLSafe(b), nil
}

// NewClientSecret returns cs- followed by 16 random bytes in hex.
func NewClientSecret() (string, error) {
	b, err := RandomBytes(ClientSecretBytes)
	if err != nil {
		return "", err
	}
	return clientSecretPrefix + hex.EncodeToString(b), nil
}

// NewSessionID returns 32 random bytes in URL-safe base64.
func NewSessionID() (string, error) {
	b, err := RandomBytes(SessionIDBytes)
	if err != nil {
		return "", err
	}
	return EncodeURLSafe(b), nil
}
