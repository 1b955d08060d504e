package analyzer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

var (
	bareECUCode = regexp.MustCompile(`\b\d{4}\b`)
	modelCode   = regexp.MustCompile(`\b[A-Za-z]{0,3}\d{3,4}[A-Za-z]{0,2}\b`)
)

// KeywordExtractor normalizes aliases and pulls typed keywords out of free text.
// It holds only read-only tables and is safe for concurrent use.
type KeywordExtractor struct {
	synonyms   map[string]string
	reverse    map[string][]string
	brands     []string
	ecuTypes   []string
	components []string
	series     []string
	ecuSet     map[string]struct{}
}

func NewKeywordExtractor() *KeywordExtractor {
	e := &KeywordExtractor{
		synonyms:   synonyms,
		reverse:    make(map[string][]string),
		brands:     byLengthDesc(brands),
		ecuTypes:   byLengthDesc(ecuTypes),
		components: byLengthDesc(components),
		series:     byLengthDesc(series),
		ecuSet:     make(map[string]struct{}, len(ecuTypes)),
	}
	for alias, canonical := range synonyms {
		key := strings.ToLower(canonical)
		e.reverse[key] = append(e.reverse[key], alias)
	}
	for _, aliases := range e.reverse {
		sort.Strings(aliases)
	}
	for _, t := range ecuTypes {
		e.ecuSet[strings.ToUpper(t)] = struct{}{}
	}
	return e
}

func byLengthDesc(terms []string) []string {
	out := append([]string(nil), terms...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// Normalize maps an alias or misspelling to its canonical form.
// Unknown terms are returned trimmed and otherwise unchanged.
func (e *KeywordExtractor) Normalize(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	if canonical, ok := e.synonyms[strings.ToLower(term)]; ok {
		return canonical
	}
	return term
}

// Variants returns the term, its canonical form and every alias of that form.
func (e *KeywordExtractor) Variants(term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	add := func(v string) {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok || v == "" {
			return
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	add(term)
	normalized := e.Normalize(term)
	add(normalized)
	for _, alias := range e.reverse[strings.ToLower(normalized)] {
		add(alias)
	}
	return out
}

// ExtractBrands returns canonical brand names in order of appearance.
func (e *KeywordExtractor) ExtractBrands(text string) []string {
	return e.matchVocabulary(e.expandAliases(text), e.brands)
}

// ExtractECUTypes returns ECU codes in order of appearance. Bare four-digit
// codes are accepted when an alias maps them to a known ECU.
func (e *KeywordExtractor) ExtractECUTypes(text string) []string {
	found := e.matchVocabulary(e.expandAliases(text), e.ecuTypes)
	for _, code := range bareECUCode.FindAllString(text, -1) {
		normalized := e.Normalize(code)
		if normalized != code && e.IsECUType(normalized) && !containsFold(found, normalized) {
			found = append(found, normalized)
		}
	}
	return found
}

// ExtractComponents returns component names in order of appearance.
func (e *KeywordExtractor) ExtractComponents(text string) []string {
	return e.matchVocabulary(e.expandAliases(text), e.components)
}

// ExtractSeries returns the vehicle series or model code named in text.
func (e *KeywordExtractor) ExtractSeries(text string) string {
	if found := e.matchVocabulary(text, e.series); len(found) > 0 {
		return found[0]
	}
	for _, m := range modelCode.FindAllString(text, -1) {
		if !strings.ContainsFunc(m, unicode.IsLetter) {
			continue
		}
		upper := strings.ToUpper(m)
		if e.IsECUType(upper) || e.IsECUType(e.Normalize(m)) {
			continue
		}
		return upper
	}
	return ""
}

// IsECUType reports whether term is a known ECU code.
func (e *KeywordExtractor) IsECUType(term string) bool {
	_, ok := e.ecuSet[strings.ToUpper(term)]
	return ok
}

// IsGenericEquipment reports whether term names a generic machine family.
func (e *KeywordExtractor) IsGenericEquipment(term string) bool {
	lower := strings.ToLower(term)
	for _, t := range equipmentTypes {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// EquipmentIndicators are stems that identify the excavator family in
// document text.
func (e *KeywordExtractor) EquipmentIndicators() []string {
	return equipmentIndicators
}

// Extract builds a QueryInfo from raw text using the local vocabularies only.
func (e *KeywordExtractor) Extract(text string) domain.QueryInfo {
	q := domain.QueryInfo{OriginalQuery: strings.TrimSpace(text)}
	if v := e.ExtractBrands(text); len(v) > 0 {
		q.Brand = v[0]
	}
	if v := e.ExtractECUTypes(text); len(v) > 0 {
		q.ECUType = v[0]
	}
	if v := e.ExtractComponents(text); len(v) > 0 {
		q.Component = v[0]
	}
	q.Model = e.ExtractSeries(text)
	q.QueryType = inferQueryType(text, q)
	return q
}

func inferQueryType(text string, q domain.QueryInfo) string {
	lower := strings.ToLower(text)
	switch {
	case q.ECUType != "" || strings.Contains(lower, "ecu") || strings.Contains(lower, "controller"):
		return "ECU diagram"
	case strings.Contains(lower, "whole vehicle") || strings.Contains(lower, "full vehicle"):
		return "vehicle diagram"
	case strings.Contains(lower, "engine"):
		return "engine diagram"
	case strings.Contains(lower, "pin"):
		return "pin definition"
	}
	return "vehicle diagram"
}

// expandAliases appends the canonical form of every alias found in text so
// vocabulary matching sees both spellings.
func (e *KeywordExtractor) expandAliases(text string) string {
	lower := strings.ToLower(text)
	var extra []string
	for alias, canonical := range e.synonyms {
		if _, ok := indexWord(lower, alias); ok {
			extra = append(extra, canonical)
		}
	}
	if len(extra) == 0 {
		return text
	}
	sort.Strings(extra)
	return text + " | " + strings.Join(extra, " | ")
}

// matchVocabulary finds whole-word, case-insensitive occurrences of vocab terms.
// Longer terms claim their span first so "fuse box" wins over "fuse".
func (e *KeywordExtractor) matchVocabulary(text string, vocab []string) []string {
	lower := strings.ToLower(text)
	type hit struct {
		term       string
		start, end int
	}
	var hits []hit
	for _, term := range vocab {
		lt := strings.ToLower(term)
		from := 0
		for from < len(lower) {
			idx, ok := indexWord(lower[from:], lt)
			if !ok {
				break
			}
			start := from + idx
			end := start + len(lt)
			overlaps := false
			for _, h := range hits {
				if start < h.end && h.start < end {
					overlaps = true
					break
				}
			}
			if !overlaps {
				hits = append(hits, hit{term: term, start: start, end: end})
				break
			}
			from = end
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	var out []string
	for _, h := range hits {
		if !containsFold(out, h.term) {
			out = append(out, h.term)
		}
	}
	return out
}

// indexWord returns the byte offset of the first occurrence of word in text
// that is not glued to a letter or digit on either side.
func indexWord(text, word string) (int, bool) {
	if word == "" {
		return 0, false
	}
	from := 0
	for {
		idx := strings.Index(text[from:], word)
		if idx < 0 {
			return 0, false
		}
		start := from + idx
		end := start + len(word)
		if isBoundary(text, start-1, true) && isBoundary(text, end, false) {
			return start, true
		}
		from = start + 1
		if from >= len(text) {
			return 0, false
		}
	}
}

func isBoundary(text string, pos int, before bool) bool {
	if pos < 0 || pos >= len(text) {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(text[:pos+1])
	} else {
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// ContainsWord reports whether word occurs in text as a whole word, ignoring case.
func ContainsWord(text, word string) bool {
	_, ok := indexWord(strings.ToLower(text), strings.ToLower(strings.TrimSpace(word)))
	return ok
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
