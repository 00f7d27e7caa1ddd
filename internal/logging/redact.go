package logging

import "strings"

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[REDACTED]"

var sensitiveKeys = []string{"token", "secret", "password", "authorization"}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// redact returns args with secret values masked. args is returned unchanged
// when nothing needs masking.
func redact(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || !sensitive(key) {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = Redacted
	}
	if out == nil {
		return args
	}
	return out
}
