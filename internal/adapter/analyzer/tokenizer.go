package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits catalog text into lower-case full-text tokens.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a new Tokenizer. Tokens shorter than minLen are dropped.
func NewTokenizer(minLen int) *Tokenizer {
	if minLen < 1 {
		minLen = 1
	}
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    minLen,
	}
}

// Tokenize splits text into unique tokens in order of first appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits on anything that is not a letter or digit. A dot between
// two digits stays inside the word so "DCM3.7" is one token.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder
	runes := []rune(text)

	for i, r := range runes {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r)
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			keep = true
		}
		if keep {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "in", "is", "it", "of", "on", "or", "the", "to",
		"with", "this", "that", "me", "my", "i", "want", "need",
		"please", "find", "show", "give", "get", "looking",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
