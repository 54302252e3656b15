// Package redact strips credentials from strings before they are logged.
// Database URLs, password assignments and token-like values in error messages
// are replaced with placeholders; file paths are kept so operators can find
// generated audio from the logs.
package redact

import (
	"net/url"
	"regexp"
)

// Placeholders substituted for redacted values.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

var (
	// scheme://user:password@ prefixes of connection strings
	dsnCredentialRegex = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/@\s]+@`)

	// password=..., pwd: ... as found in key/value DSNs and driver errors
	passwordRegex = regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*['"]?)[^'"&\s]+`)

	// token=..., api_key: ..., secret=...
	keyRegex = regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret)(\s*[=:]\s*['"]?)[A-Za-z0-9_\-.~+/]{8,}`)
)

// String returns s with credentials replaced.
func String(s string) string {
	s = dsnCredentialRegex.ReplaceAllString(s, "${1}"+RedactedCredentialPlaceholder+"@")
	s = passwordRegex.ReplaceAllString(s, "${1}${2}"+RedactedCredentialPlaceholder)
	s = keyRegex.ReplaceAllString(s, "${1}${2}"+RedactedKeyPlaceholder)
	return s
}

// Error returns the redacted message of err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// URL returns raw with any password masked. Strings that do not parse as URLs
// go through String instead.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return String(raw)
	}
	return u.Redacted()
}
