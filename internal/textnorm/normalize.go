// Package textnorm cleans scraped text before it reaches the sentiment classifier.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLength matches the classifier's input ceiling.
const MaxLength = 512

var (
	tagExpr        = regexp.MustCompile(`<[^>]+>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
	disallowedExpr = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
)

// Normalize strips markup, collapses whitespace, drops characters outside the
// allowed set and truncates the result to MaxLength runes.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := tagExpr.ReplaceAllString(raw, "")
	text = norm.NFKC.String(text)
	text = whitespaceExpr.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = disallowedExpr.ReplaceAllString(text, "")

	return truncate(text, MaxLength)
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
