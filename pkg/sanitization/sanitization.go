package sanitization

import (
	"fmt"
	"strings"
)

const redactedValue = "[REDACTED]"

// SanitizationType defines how to sanitize a field.
type SanitizationType int

const (
	FullyRedact SanitizationType = iota
	PartialMask
)

// SensitiveFields defines fields that require explicit sanitization behavior.
//
// This list is intentionally keyed by lowercased field name.
var SensitiveFields = map[string]SanitizationType{
	"aws_access_key_id":     PartialMask,
	"access_key_id":         PartialMask,
	"aws_secret_access_key": FullyRedact,
	"secret_access_key":     FullyRedact,
	"aws_session_token":     FullyRedact,
	"session_token":         FullyRedact,

	"account":        PartialMask,
	"account_id":     PartialMask,
	"aws_account_id": PartialMask,

	"password":    FullyRedact,
	"secret":      FullyRedact,
	"private_key": FullyRedact,

	"authorization":        FullyRedact,
	"authorization_header": FullyRedact,

	"api_key":       FullyRedact,
	"api_key_id":    PartialMask,
	"client_secret": FullyRedact,
}

// SanitizeLogString removes control characters that could enable log forging.
func SanitizeLogString(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

// SanitizeFieldValue sanitizes a field value based on its key name.
//
// This function is intentionally deterministic and safe-by-default for known sensitive keys.
func SanitizeFieldValue(key string, value any) any {
	keyLower := strings.ToLower(strings.TrimSpace(key))
	if keyLower == "" {
		return sanitizeValue(value)
	}

	if typ, ok := SensitiveFields[keyLower]; ok {
		if typ == PartialMask {
			return maskLast4(value)
		}
		return redactedValue
	}

	// Substring-based fallback: treat obvious secrets/tokens as fully redacted.
	blockedSubstrings := []string{
		"secret",
		"client_secret",
		"api_key",
		"apikey",
		"token",
		"password",
		"private_key",
		"credential",
		"authorization",
	}
	for _, substr := range blockedSubstrings {
		if strings.Contains(keyLower, substr) {
			return redactedValue
		}
	}

	return sanitizeValue(value)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return SanitizeLogString(typed)
	case []byte:
		return SanitizeLogString(string(typed))
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = SanitizeFieldValue(k, v)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = SanitizeFieldValue(k, v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = sanitizeValue(typed[i])
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = SanitizeLogString(typed[i])
		}
		return out
	default:
		return SanitizeLogString(fmt.Sprintf("%v", typed))
	}
}

// maskLast4 keeps the last four characters of identifiers such as access key
// ids and account numbers.
func maskLast4(value any) string {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return redactedValue
	}
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return redactedValue
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
