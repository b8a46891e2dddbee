// Package redact scrubs PII and secret-shaped substrings from text and
// nested payloads before they are persisted or leave the process.
// Redaction is irreversible: matches are replaced with fixed placeholders.
package redact

import (
	"fmt"
	"regexp"
)

// Placeholders inserted in place of redacted content.
const (
	EmailPlaceholder = "[EMAIL_REDACTED]"
	PhonePlaceholder = "[PHONE_REDACTED]"
	IDPlaceholder    = "[ID_REDACTED]"
	TokenPlaceholder = "[TOKEN_REDACTED]"
	Truncated        = "[TRUNCATED]"
)

// MaxDepth bounds recursion into nested payloads. Anything deeper is
// replaced wholesale with Truncated.
const MaxDepth = 8

// Patterns for sensitive content. Token patterns run first so that digit
// runs inside tokens are not half-matched as phone numbers or IDs.
var (
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=+/]{12,}`)
	secretKeyPattern   = regexp.MustCompile(`\bsk_[A-Za-z0-9]{12,}\b`)
	jwtPattern         = regexp.MustCompile(`\beyJ[A-Za-z0-9\-_]{8,}\.[A-Za-z0-9\-_]{4,}(?:\.[A-Za-z0-9\-_]+)?`)
	hexSecretPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{40,}\b`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// E.164-like numbers: leading +, 8-15 digits with optional separators.
	// Bare digit runs without a + are handled by the national-ID pattern.
	phonePattern = regexp.MustCompile(`\+\d[\d\s\-]{6,13}\d\b`)

	// National-ID-shaped bare digit runs (9-14 digits).
	nationalIDPattern = regexp.MustCompile(`\b\d{9,14}\b`)
)

// replacements pairs each pattern with its placeholder, in match order.
var replacements = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	{bearerTokenPattern, TokenPlaceholder},
	{secretKeyPattern, TokenPlaceholder},
	{jwtPattern, TokenPlaceholder},
	{hexSecretPattern, TokenPlaceholder},
	{emailPattern, EmailPlaceholder},
	{phonePattern, PhonePlaceholder},
	{nationalIDPattern, IDPlaceholder},
}

// preservedKeys are context keys whose values are needed for scoping and
// are never redacted.
var preservedKeys = map[string]bool{
	"user_id":   true,
	"tenant_id": true,
}

// Text scrubs all recognized sensitive patterns from a string.
func Text(s string) string {
	for _, r := range replacements {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Value scrubs a value of arbitrary shape. Strings are redacted, maps and
// slices are walked recursively up to MaxDepth, and other scalars pass
// through unchanged. The input is never mutated; a new value is returned.
func Value(v any) any {
	return redactValue(v, 0)
}

// Context scrubs the values of a context map while passing scoping keys
// (user_id, tenant_id) through untouched.
func Context(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if preservedKeys[k] {
			out[k] = v
			continue
		}
		out[k] = redactValue(v, 1)
	}
	return out
}

func redactValue(v any, depth int) any {
	if depth > MaxDepth {
		return Truncated
	}

	switch val := v.(type) {
	case string:
		return Text(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = redactValue(inner, depth+1)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = Text(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Text(inner)
		}
		return out
	case fmt.Stringer:
		return Text(val.String())
	default:
		// Numbers, booleans, nil: nothing to scrub.
		return val
	}
}
