package categorizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

const (
	summaryLimit     = 50
	strongCoverage   = 0.3
	weakCoverage     = 0.5
	partialWindowLen = 3
)

// Summaries renders the bounded view of docs sent to the classifier: the
// first entries and a final line of brand counts over the whole set.
func Summaries(e *analyzer.KeywordExtractor, docs []domain.Document) []string {
	n := len(docs)
	if n > summaryLimit {
		n = summaryLimit
	}
	out := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%d. %s (%s)", i+1, docs[i].FileName, docs[i].HierarchyPath))
	}

	counts := map[string]int{}
	for _, d := range docs {
		if b := brandOf(e, d); b != "" {
			counts[b]++
		}
	}
	if len(counts) > 0 {
		names := make([]string, 0, len(counts))
		for b := range counts {
			names = append(names, b)
		}
		sort.Slice(names, func(i, j int) bool {
			if counts[names[i]] != counts[names[j]] {
				return counts[names[i]] > counts[names[j]]
			}
			return names[i] < names[j]
		})
		parts := make([]string, len(names))
		for i, b := range names {
			parts[i] = fmt.Sprintf("%s: %d", b, counts[b])
		}
		out = append(out, fmt.Sprintf("Total %d documents. Brand counts: %s", len(docs), strings.Join(parts, ", ")))
	}
	return out
}

// groupOf returns the label of the first group doc matches, or "".
func groupOf(doc domain.Document, groups []domain.LabeledGroup) string {
	text := doc.Text()
	for _, g := range groups {
		if g.Label != "" && matchesKeywords(text, g.Keywords) {
			return g.Label
		}
	}
	return ""
}

// matchesKeywords applies the weighted rule: with at least one whole-word hit,
// 30% of keywords matching is enough; otherwise half of them and at least
// min(2, n) must match.
func matchesKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	n, matched, strong := 0, 0, false
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		n++
		if analyzer.ContainsWord(text, kw) {
			strong = true
			matched++
			continue
		}
		if partialMatch(lower, strings.ToLower(kw)) {
			matched++
		}
	}
	if n == 0 || matched == 0 {
		return false
	}
	coverage := float64(matched) / float64(n)
	if strong && coverage >= strongCoverage {
		return true
	}
	need := 2
	if n < need {
		need = n
	}
	return coverage >= weakCoverage && matched >= need
}

func partialMatch(lowerText, kw string) bool {
	if strings.Contains(lowerText, kw) {
		return true
	}
	runes := []rune(kw)
	if utf8.RuneCountInString(kw) < 4 {
		return false
	}
	for i := 0; i+partialWindowLen <= len(runes); i++ {
		w := string(runes[i : i+partialWindowLen])
		if strings.TrimSpace(w) != w {
			continue
		}
		if strings.Contains(lowerText, w) {
			return true
		}
	}
	return false
}

// semanticBuckets assigns each doc to the first matching group.
func semanticBuckets(docs []domain.Document, groups []domain.LabeledGroup) []domain.Bucket {
	return groupBy(docs, func(d domain.Document) string { return groupOf(d, groups) })
}
