package scorer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

const (
	weightBrand     = 0.40
	weightModel     = 0.30
	weightComponent = 0.20
	weightECU       = 0.10

	scoreExact   = 1.0
	scoreVariant = 0.6
	scorePartial = 0.3
)

var docTokenSplit = regexp.MustCompile(`[\s_\->,.]+`)

// SimilarityScorer rates how well a document matches a structured query on a
// 0-100 scale. It has no state beyond the extractor tables.
type SimilarityScorer struct {
	extractor *analyzer.KeywordExtractor
}

func NewSimilarityScorer(extractor *analyzer.KeywordExtractor) *SimilarityScorer {
	return &SimilarityScorer{extractor: extractor}
}

type weightedField struct {
	value  string
	weight float64
}

// Score returns the weighted match of doc against q. Weights are renormalized
// over the typed fields present; with none, the original query is scored alone.
func (s *SimilarityScorer) Score(doc domain.Document, q domain.QueryInfo) float64 {
	fields := presentFields(q)
	if len(fields) == 0 {
		if strings.TrimSpace(q.OriginalQuery) == "" {
			return 0
		}
		fields = []weightedField{{value: q.OriginalQuery, weight: 1}}
	}

	text := strings.ToLower(doc.Text())
	tokens := docTokens(text)

	var total, weights float64
	for _, f := range fields {
		weights += f.weight
		total += f.weight * s.fieldScore(text, tokens, f.value)
	}
	if weights == 0 {
		return 0
	}

	score := total / weights * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func presentFields(q domain.QueryInfo) []weightedField {
	var fields []weightedField
	if q.Brand != "" {
		fields = append(fields, weightedField{q.Brand, weightBrand})
	}
	if q.Model != "" {
		fields = append(fields, weightedField{q.Model, weightModel})
	}
	if q.Component != "" {
		fields = append(fields, weightedField{q.Component, weightComponent})
	}
	if q.ECUType != "" {
		fields = append(fields, weightedField{q.ECUType, weightECU})
	}
	return fields
}

// fieldScore returns the best single-field match of keyword in text.
func (s *SimilarityScorer) fieldScore(text string, tokens []string, keyword string) float64 {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return 0
	}
	if strings.Contains(text, kw) {
		return scoreExact
	}
	if normalized := strings.ToLower(s.extractor.Normalize(kw)); normalized != kw && strings.Contains(text, normalized) {
		return scoreExact
	}
	for _, v := range s.extractor.Variants(kw) {
		if strings.Contains(text, strings.ToLower(v)) {
			return scoreVariant
		}
	}
	if s.equipmentMatch(text, kw) {
		return scoreVariant
	}
	if windowMatch(text, kw) || reverseContains(tokens, kw) {
		return scorePartial
	}
	return 0
}

// equipmentMatch links a generic machine word in the query to documents that
// name the same family with a different word form.
func (s *SimilarityScorer) equipmentMatch(text, kw string) bool {
	stems := s.extractor.EquipmentIndicators()
	if !containsAnyStem(kw, stems) {
		return false
	}
	return containsAnyStem(text, stems)
}

func containsAnyStem(s string, stems []string) bool {
	for _, stem := range stems {
		if strings.Contains(s, stem) {
			return true
		}
	}
	return false
}

// windowMatch slides a two-rune window over kw, ignoring windows with spaces.
func windowMatch(text, kw string) bool {
	runes := []rune(kw)
	for i := 0; i+2 <= len(runes); i++ {
		w := runes[i : i+2]
		if unicode.IsSpace(w[0]) || unicode.IsSpace(w[1]) {
			continue
		}
		if strings.Contains(text, string(w)) {
			return true
		}
	}
	return false
}

func docTokens(text string) []string {
	parts := docTokenSplit.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// reverseContains reports whether some document token is contained in kw or contains it.
func reverseContains(tokens []string, kw string) bool {
	for _, tok := range tokens {
		if strings.Contains(kw, tok) || strings.Contains(tok, kw) {
			return true
		}
	}
	return false
}
