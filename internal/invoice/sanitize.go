package invoice

import "strings"

// SanitizeResponse turns a raw model reply into best-effort plain JSON text.
// It trims surrounding whitespace, strips a leading ```json fence and a
// trailing ``` fence, and rewrites typographic double quotes to ASCII quotes.
// It never fails; text that is still malformed surfaces as a decode error
// downstream.
func SanitizeResponse(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	s = strings.ReplaceAll(s, "“", `"`)
	s = strings.ReplaceAll(s, "”", `"`)

	return strings.TrimSpace(s)
}

// CleanNumericLiterals removes every comma that sits directly between two
// digits, so thousands separators inside numeric literals ("2,500.00") do not
// break JSON parsing. Adjacency is judged on the original text, matching the
// digit-comma-digit rule, so "1,2,3" becomes "123".
//
// Known limitation: a digit,digit comma inside a quoted string (for example
// an address like "12,34 Main St") is lexically indistinguishable from a
// thousands separator and is stripped as well.
func CleanNumericLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && i > 0 && i+1 < len(s) && isASCIIDigit(s[i-1]) && isASCIIDigit(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
