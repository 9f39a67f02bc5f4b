package usecase

import (
	"strings"
	"unicode"
)

var stopWords = toSet(
	"a", "about", "an", "and", "are", "as", "at", "be", "but", "by", "can", "could",
	"did", "do", "does", "for", "from", "had", "has", "have", "how", "i", "if", "in",
	"into", "is", "it", "its", "me", "my", "of", "on", "or", "our", "please", "should",
	"so", "tell", "than", "that", "the", "their", "them", "then", "there", "these",
	"they", "this", "to", "us", "was", "we", "were", "what", "when", "where", "which",
	"who", "why", "will", "with", "would", "you", "your",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// joinOverlapping appends next to prev, collapsing the longest suffix of prev
// that is also a prefix of next. Overlaps shorter than minOverlapRunes are
// treated as coincidental.
func joinOverlapping(prev, next string, maxOverlap int) string {
	prev = strings.TrimSpace(prev)
	next = strings.TrimSpace(next)
	switch {
	case prev == "":
		return next
	case next == "":
		return prev
	case strings.Contains(prev, next):
		return prev
	}

	p := []rune(prev)
	n := []rune(next)
	limit := min(len(p), len(n))
	if maxOverlap > 0 {
		limit = min(limit, maxOverlap)
	}
	for k := limit; k >= minOverlapRunes; k-- {
		if string(p[len(p)-k:]) == string(n[:k]) {
			return prev + string(n[k:])
		}
	}
	return prev + " " + next
}

const minOverlapRunes = 8
