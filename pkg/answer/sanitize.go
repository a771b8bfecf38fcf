package answer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultCaptionLimit is the Telegram cap for message text and photo captions.
const DefaultCaptionLimit = 1024

var (
	blankLineRun   = regexp.MustCompile(`\n[ \t\r]*\n(?:[ \t\r]*\n)+`)
	escapeWrapper  = regexp.MustCompile(`\\([^\\]+)\\`)
	fractionMarkup = regexp.MustCompile(`\\frac\{(.*?)\}\{(.*?)\}`)
)

// Sanitize turns corpus markup into transport-safe text no longer than capLength runes.
//
// Steps run in a fixed order: blank-line collapse, truncation, escape wrapper removal,
// backslash unescaping, fraction rewrite, emphasis stripping. Stripping emphasis can leave
// lines blank, so the collapse runs once more before the final truncation.
func Sanitize(raw string, capLength int) string {
	text := CollapseBlankLines(raw)
	text = Truncate(text, capLength)
	text = StripEscapeWrappers(text)
	text = UnescapeBackslashes(text)
	text = RewriteFractions(text)
	text = StripEmphasis(text)
	text = CollapseBlankLines(text)
	return Truncate(text, capLength)
}

// CollapseBlankLines replaces runs of two or more blank lines with a single newline.
func CollapseBlankLines(text string) string {
	return blankLineRun.ReplaceAllString(text, "\n")
}

// Truncate cuts text to at most capLength runes.
func Truncate(text string, capLength int) string {
	if capLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= capLength {
		return text
	}

	count := 0
	for index := range text {
		if count == capLength {
			return text[:index]
		}
		count++
	}

	return text
}

// StripEscapeWrappers removes backslash pairs wrapping a span, keeping the span.
func StripEscapeWrappers(text string) string {
	return escapeWrapper.ReplaceAllString(text, "$1")
}

// UnescapeBackslashes collapses literal double backslashes to one.
func UnescapeBackslashes(text string) string {
	return strings.ReplaceAll(text, `\\`, `\`)
}

// RewriteFractions turns \frac{A}{B} into (A)/(B).
func RewriteFractions(text string) string {
	return fractionMarkup.ReplaceAllString(text, "($1)/($2)")
}

// StripEmphasis drops Markdown emphasis delimiters.
func StripEmphasis(text string) string {
	return strings.NewReplacer("*", "", "_", "").Replace(text)
}
