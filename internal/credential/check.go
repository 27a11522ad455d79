package credential

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minAPIKeyLen      = 20
	maxNameLen        = 100
	maxPrefixLabelLen = 50
	MaxMetadataLen    = 2000
)

var (
	// prefix segment, label segment(s), random suffix. The suffix alphabet is
	// the URL-safe base64 alphabet the generator emits.
	apiKeyFormat = regexp.MustCompile(`^[a-z]+-[a-z0-9-]+-[A-Za-z0-9_-]+$`)
	nameCharset  = regexp.MustCompile(`^[a-zA-Z0-9\s-]+$`)
)

// ValidAPIKeyFormat reports whether key has the structural shape of an
// issued API key. It needs no store access.
func ValidAPIKeyFormat(key string) bool {
	return len(key) >= minAPIKeyLen && apiKeyFormat.MatchString(key)
}

// HasKeyPrefix reports whether key was minted under keyPrefix.
func HasKeyPrefix(key, keyPrefix string) bool {
	return keyPrefix != "" && strings.HasPrefix(key, keyPrefix) && len(key) > len(keyPrefix)
}

// ValidApplicationName reports whether name (already trimmed) is 1-100
// characters of letters, digits, whitespace and hyphens.
func ValidApplicationName(name string) bool {
	return validLabelLike(name, maxNameLen)
}

// ValidPrefixLabel applies the application-name charset with a 50 character
// limit, and additionally requires the sanitized form to carry at least one
// letter or digit.
func ValidPrefixLabel(label string) bool {
	return validLabelLike(label, maxPrefixLabelLen) && strings.Trim(SanitizeLabel(label), "-") != ""
}

// ValidMetadata reports whether metadata fits the 2000 character limit.
// A nil pointer means no metadata and is valid.
func ValidMetadata(metadata *string) bool {
	if metadata == nil {
		return true
	}
	return utf8.RuneCountInString(*metadata) <= MaxMetadataLen
}

func validLabelLike(s string, limit int) bool {
	n := utf8.RuneCountInString(s)
	if n == 0 || n > limit {
		return false
	}
	return nameCharset.MatchString(s)
}
