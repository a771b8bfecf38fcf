package brainly

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var trailingSpaces = regexp.MustCompile(`[ \t]+\n`)

// lineBreakTags end a line when they open (br) or close (block elements).
var lineBreakTags = map[string]struct{}{
	"br":  {},
	"p":   {},
	"div": {},
	"li":  {},
	"tr":  {},
	"h1":  {},
	"h2":  {},
	"h3":  {},
}

// htmlToText flattens corpus HTML into plain text: tags are dropped, entities decoded,
// and line-level elements become newlines. Markup-looking text (LaTeX, asterisks) is
// left untouched for the sanitizer.
func htmlToText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return strings.TrimSpace(content)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			text := trailingSpaces.ReplaceAllString(b.String(), "\n")
			return strings.TrimSpace(text)
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if _, ok := lineBreakTags[string(name)]; ok && string(name) != "br" {
				b.WriteByte('\n')
			}
		}
	}
}
