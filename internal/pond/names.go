package pond

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameRunes caps owner and pet names.
const MaxNameRunes = 24

// CleanName normalizes a user-supplied display name: NFC normalization,
// control characters dropped, surrounding space trimmed, and the result
// truncated to MaxNameRunes.
func CleanName(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxNameRunes {
		s = strings.TrimSpace(string(runes[:MaxNameRunes]))
	}
	return s
}
