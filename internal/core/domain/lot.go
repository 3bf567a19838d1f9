package domain

import "strings"

// NormalizeLot canonicalizes a free-text lot number: every non-digit
// character is dropped, then leading zeros. Unparseable input yields "".
// Idempotent, and applied uniformly wherever a lot is stored or
// compared, so all lot matching is exact-match on the normalized form.
func NormalizeLot(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
