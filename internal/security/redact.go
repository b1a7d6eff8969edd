package security

import "strings"

const redacted = "***"

var sensitiveSubstrings = []string{
	"token",
	"password",
	"passwd",
	"passphrase",
	"pwd",
	"authorization",
	"apikey",
	"api_key",
	"access_key",
	"private_key",
	"credential",
	"secret",
	"signature",
	"cookie",
	"jwt",
	"bearer",
}

var allowList = map[string]struct{}{
	"secret_name": {},
	"path":        {},
	"prompt":      {},
}

// RedactArguments returns a copy of a command payload with sensitive values
// replaced. Nested mappings and sequences are redacted recursively.
func RedactArguments(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		if isSensitiveKey(key) {
			out[key] = redacted
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return RedactArguments(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = redactValue(item)
		}
		return items
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if _, ok := allowList[lower]; ok {
		return false
	}
	for _, part := range sensitiveSubstrings {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
