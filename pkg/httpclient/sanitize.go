package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveKeyFragments flags query parameters whose values must not reach
// logs. Matching is case-insensitive and by substring, so "my_api_key" and
// "BEARER_TOKEN" are both caught.
var sensitiveKeyFragments = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
	"signature",
}

const redactedValue = "[REDACTED]"

// sanitizeURL renders u for logging with credentials stripped: sensitive
// query parameters are replaced with a placeholder and any userinfo password
// is masked. Returns "" for a nil URL.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	if q := u.Query(); len(q) > 0 {
		for key := range q {
			if sensitiveKey(key) {
				q.Set(key, redactedValue)
			}
		}
		safe.RawQuery = q.Encode()
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			safe.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return safe.String()
}

// sensitiveKey reports whether a query parameter name looks credential-like.
func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
