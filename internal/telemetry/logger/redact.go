package logger

import (
	"log/slog"
	"strings"
)

const redactedValue = "***REDACTED***"

// Values starting with one of these are masked whatever their key.
// "eyJ" is base64 for `{"`, the start of every JWT header.
var tokenPrefixes = [...]string{"Bearer ", "eyJ"}

// Attributes whose lower-cased key contains one of these are replaced.
var secretKeyParts = [...]string{
	"password", "passphrase", "secret", "token", "credential",
	"authorization", "bearer", "cookie", "api_key", "apikey",
}

// MaskToken shortens a bearer token or JWT to its first and last three
// characters after the recognized prefix. Other strings are returned
// unchanged.
func MaskToken(s string) string {
	for _, p := range tokenPrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			if len(rest) <= 6 {
				return p + "***"
			}
			return p + rest[:3] + "..." + rest[len(rest)-3:]
		}
	}
	return s
}

func looksLikeToken(s string) bool {
	for _, p := range tokenPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// redactAttr masks token-shaped values, blanks non-empty strings under
// secret keys and recurses into groups.
func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		switch {
		case looksLikeToken(v):
			return slog.String(a.Key, MaskToken(v))
		case v != "" && isSecretKey(a.Key):
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, g := range group {
			out = append(out, redactAttr(g))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}
