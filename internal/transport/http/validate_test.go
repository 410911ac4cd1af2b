package httptransport

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sponsorlink/pkg/domain-errors"
)

func TestNormalizeEmail(t *testing.T) {
	valid := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a@x.com", "a@x.com"},
		{"upper-cased", "A@X.COM", "a@x.com"},
		{"surrounding whitespace", "  a@x.com  ", "a@x.com"},
		{"plus tag", "donor+portal@example.org", "donor+portal@example.org"},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeEmail(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no at sign", "a.x.com"},
		{"display name form", "Donor <a@x.com>"},
		{"embedded newline", "a@x.com\nbcc: b@x.com"},
		{"over length", strings.Repeat("a", maxEmailLen) + "@x.com"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeEmail(tc.in)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		})
	}
}

func TestNormalizeSponsorCode(t *testing.T) {
	valid := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "BAN-2025-104", "BAN-2025-104"},
		{"lower-cased input", "ban-2025-104", "BAN-2025-104"},
		{"surrounding whitespace", " BAN-2025-104 ", "BAN-2025-104"},
		{"short prefix", "KE-2024-1", "KE-2024-1"},
		{"long prefix and serial", "NEPAL-2023-9999", "NEPAL-2023-9999"},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeSponsorCode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing serial", "BAN-2025"},
		{"two-digit year", "BAN-25-104"},
		{"digits in prefix", "B4N-2025-104"},
		{"five-digit serial", "BAN-2025-10400"},
		{"sql injection shape", "BAN-2025-104' OR '1'='1"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeSponsorCode(tc.in)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		})
	}
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", sanitizeText("  hello  ", 100))
	assert.Equal(t, "line1\nline2", sanitizeText("line1\nline2", 100), "newlines survive")
	assert.Equal(t, "ab", sanitizeText("a\x00\x1bb", 100), "control characters are stripped")
	assert.Equal(t, "abc", sanitizeText("abcdef", 3), "over-length text is truncated")
	assert.Empty(t, sanitizeText("\x00\x07", 100))
}

// Truncation must never cut through a multi-byte rune and leave invalid
// UTF-8 behind.
func TestSanitizeTextTruncatesOnRuneBoundary(t *testing.T) {
	got := sanitizeText("abécd", 3) // é is two bytes; byte 3 is mid-rune
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))

	got = sanitizeText("日本語", 7) // three 3-byte runes
	assert.Equal(t, "日本", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "abé", sanitizeText("abécd", 4), "boundary cut keeps the full rune")
}

func TestRequireText(t *testing.T) {
	got, err := requireText("  A title  ", "title", maxTitleLen)
	require.NoError(t, err)
	assert.Equal(t, "A title", got)

	_, err = requireText("   ", "title", maxTitleLen)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	assert.Contains(t, err.Error(), "title")
}
