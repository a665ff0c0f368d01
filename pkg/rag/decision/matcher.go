package decision

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type MatchMode string

const (
	// MatchSubstring matches a term anywhere in the text, case-insensitively.
	MatchSubstring MatchMode = "substring"
	// MatchKeyword requires the term to sit on word boundaries.
	MatchKeyword MatchMode = "keyword"
)

func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), string(MatchKeyword)) {
		return MatchKeyword
	}
	return MatchSubstring
}

func (m MatchMode) contains(text, term string) bool {
	text, term = strings.ToLower(text), strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if m != MatchKeyword {
		return strings.Contains(text, term)
	}

	from := 0
	for {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if isBoundaryBefore(text, start) && isBoundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func isBoundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}
