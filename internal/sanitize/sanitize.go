// Package sanitize cleans user-supplied text before it reaches the scenario
// catalog or the engine: scenario names, keyword lists, core-logic phrases,
// descriptions and argument text. It strips control characters everywhere
// and markup from catalog fields, preserving the words the engine matches on.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxArgumentLength is the maximum length of an argument.
	MaxArgumentLength = 2000

	// MaxDescriptionLength is the maximum length of a description or core logic.
	MaxDescriptionLength = 500

	// MaxNameLength is the maximum length of a scenario name.
	MaxNameLength = 80

	// MaxKeywordLength is the maximum length of a single keyword.
	MaxKeywordLength = 40

	// MaxKeywords is the maximum number of keywords per scenario.
	MaxKeywords = 50
)

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reWhitespace matches any run of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)

	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)
)

// Text strips control characters and markup tags, collapses whitespace to
// single spaces and truncates to maxLen bytes on a rune boundary.
func Text(input string, maxLen int) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return truncate(s, maxLen)
}

// Argument strips control characters from argument text and enforces
// MaxArgumentLength. Markup and inner whitespace are left alone since the
// engine matches on the text as written. A blank argument becomes "".
func Argument(input string) string {
	s := stripControlChars(input)
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return truncate(s, MaxArgumentLength)
}

// ScenarioName keeps letters, digits, '-' and '_', turns whitespace into
// hyphens, collapses repeated hyphens and enforces MaxNameLength.
func ScenarioName(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}

	s := reRepeatedHyphens.ReplaceAllString(b.String(), "-")
	s = strings.Trim(s, "-")
	return truncate(s, MaxNameLength)
}

// Keywords trims and lowercases each keyword, dropping empty entries.
// Order and repeats are preserved; at most MaxKeywords are kept.
func Keywords(input []string) []string {
	out := make([]string, 0, len(input))
	for _, kw := range input {
		kw = strings.ToLower(Text(kw, MaxKeywordLength))
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// stripControlChars removes control characters from the string, except for
// newline and tab which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
