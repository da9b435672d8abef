package retrieval

import (
	"strings"
	"unicode"
)

// tokenize splits a query into contiguous Han runs and Latin-letter runs,
// lowercased. Everything else separates tokens.
func tokenize(query string) []string {
	var tokens []string
	var current []rune
	var currentHan bool

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = nil
		}
	}

	for _, r := range query {
		switch {
		case unicode.Is(unicode.Han, r):
			if !currentHan {
				flush()
			}
			currentHan = true
			current = append(current, r)
		case unicode.IsLetter(r):
			if currentHan {
				flush()
			}
			currentHan = false
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// keywordScore counts token occurrences in text, case-insensitive.
// Multi-character tokens weigh double.
func keywordScore(tokens []string, text string) float64 {
	lower := strings.ToLower(text)
	var score float64
	for _, token := range tokens {
		count := strings.Count(lower, token)
		if count == 0 {
			continue
		}
		weight := 1.0
		if len([]rune(token)) > 1 {
			weight = 2.0
		}
		score += float64(count) * weight
	}
	return score
}
