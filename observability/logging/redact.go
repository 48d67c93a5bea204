package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credentials in log output.
const RedactedValue = "[REDACTED]"

// sensitiveKeys name attributes whose values never reach a log sink. Matching
// is case-insensitive and ignores '-' and '_'.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"authtoken":     {},
	"bearer":        {},
	"jwt":           {},
	"jwtsecret":     {},
	"secret":        {},
	"passphrase":    {},
	"password":      {},
	"privatekey":    {},
}

func normaliseKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("-", "", "_", "").Replace(key)
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normaliseKey(key)]
	return ok
}

// MaskField returns a string attribute whose value is masked when the key is
// sensitive. Empty values pass through so absent credentials stay visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by the handler to every attribute, including those
// logged by packages that never call MaskField.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
