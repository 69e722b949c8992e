package validation

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSourceLength caps the length of a stored keyword source, in runes.
const MaxSourceLength = 200

// ValidateKeywordSource checks that a keyword source can be stored and
// matched: non-blank, bounded, and free of control characters.
func ValidateKeywordSource(source string) (bool, string) {
	if strings.TrimSpace(source) == "" {
		return false, "source is required"
	}
	if utf8.RuneCountInString(source) > MaxSourceLength {
		return false, "source is too long"
	}
	for _, r := range source {
		if unicode.IsControl(r) {
			return false, "source must not contain control characters"
		}
	}
	return true, ""
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	// Parse the URL
	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	// Check scheme - only allow http and https
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	// Ensure host is present
	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// NormalizeOrigin reduces a document origin to scheme://host. An empty
// origin stays empty and means no frame shares it.
func NormalizeOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", true
	}
	if valid, _ := ValidateURL(origin); !valid {
		return "", false
	}
	u, _ := url.Parse(origin)
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
