package pond

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Bubbles", "Bubbles"},
		{"trims", "  Nemo \t", "Nemo"},
		{"drops control chars", "Do\x00ry\n", "Dory"},
		// "e" + combining acute composes to a single code point under NFC.
		{"nfc", "Cafe\u0301", "Caf\u00e9"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanName(tt.in))
		})
	}
}

func TestCleanName_Truncates(t *testing.T) {
	got := CleanName(strings.Repeat("鱼", 40))
	assert.Equal(t, MaxNameRunes, utf8.RuneCountInString(got))
}
