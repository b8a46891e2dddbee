// Package fingerprint derives stable grouping keys for error occurrences.
// Structurally identical errors with different runtime values (IDs, UUIDs,
// redacted fragments) collapse to the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/faultline/faultline/internal/taxonomy"
)

var (
	uuidPattern        = regexp.MustCompile(`(?i)\b[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}\b`)
	placeholderPattern = regexp.MustCompile(`\[[A-Z_]+\]`)
	digitPattern       = regexp.MustCompile(`\d+`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// Normalize strips the volatile parts of an error message: UUIDs, redaction
// placeholders, digit runs and excess whitespace. The result is lowercase.
func Normalize(message string) string {
	m := uuidPattern.ReplaceAllString(message, "")
	m = placeholderPattern.ReplaceAllString(m, "")
	m = digitPattern.ReplaceAllString(m, "")
	m = whitespacePattern.ReplaceAllString(m, " ")
	return strings.ToLower(strings.TrimSpace(m))
}

// Compute derives the fingerprint for a classified occurrence. It is
// deterministic and independent of occurrence ordering.
func Compute(code string, category taxonomy.Category, module, message string) string {
	h := sha256.New()
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(module))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(message)))
	return hex.EncodeToString(h.Sum(nil))
}
