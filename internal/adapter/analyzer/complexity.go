package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// aiThreshold is the score above which a query is handed to the external model.
const aiThreshold = 20

var (
	pureAlnum = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	hasDigit  = regexp.MustCompile(`\d`)

	clearTerms        = []string{"diagram", "wiring", "schematic", "circuit", "fuse", "pin", "harness", "ecu", "instrument", "relay", "sensor"}
	complexIndicators = []string{"difference", "compare", "why", "how to", "how do", "which is better", "recommend", "troubleshoot", "explain"}
	politeWords       = []string{"please", "thanks", "thank you", "could you", "help me"}
	vagueWords        = []string{"something", "some kind", "that one", "whatever", "stuff", "thing"}
	colloquialPhrases = []string{"i want", "i need", "looking for", "give me", "find me", "do you have", "is there"}
	greetingWords     = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "greetings", "how are you"}
)

type Complexity struct {
	Score   int      `json:"score"`
	NeedsAI bool     `json:"needsAi"`
	Reasons []string `json:"reasons"`
}

// ComplexityAnalyzer decides whether local keyword extraction is enough for a
// query or whether the external model should interpret it.
type ComplexityAnalyzer struct {
	extractor *KeywordExtractor
}

func NewComplexityAnalyzer(extractor *KeywordExtractor) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{extractor: extractor}
}

func (a *ComplexityAnalyzer) Analyze(query string) Complexity {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	c := Complexity{}
	add := func(delta int, reason string) {
		c.Score += delta
		c.Reasons = append(c.Reasons, reason)
	}

	n := utf8.RuneCountInString(q)
	if n < 4 {
		add(30, "very short")
	} else if n > 50 {
		add(20, "long")
	}

	brands := a.extractor.ExtractBrands(q)
	ecus := a.extractor.ExtractECUTypes(q)
	comps := a.extractor.ExtractComponents(q)
	model := a.extractor.ExtractSeries(q)
	keywords := len(brands) + len(ecus) + len(comps)
	if model != "" {
		keywords++
	}
	equipment := a.extractor.IsGenericEquipment(lower)
	hasKeywords := keywords > 0 || equipment

	switch {
	case keywords == 0 && equipment:
		add(-50, "equipment type")
	case keywords == 0:
		add(35, "no known keywords")
	case keywords >= 2:
		add(-40, "several keywords")
	default:
		add(-20, "single keyword")
	}

	if containsAny(lower, clearTerms) {
		add(-25, "clear document type")
	}
	if len(brands) > 0 && model != "" {
		add(-30, "brand and series")
	}
	if containsAny(lower, complexIndicators) {
		if hasKeywords {
			add(10, "complex phrasing")
		} else {
			add(40, "complex phrasing")
		}
	}
	if containsAny(lower, politeWords) {
		if hasKeywords {
			add(-10, "polite")
		} else {
			add(10, "polite")
		}
	}
	if containsAny(lower, vagueWords) {
		if hasKeywords {
			add(5, "vague")
		} else {
			add(25, "vague")
		}
	}
	if hasDigit.MatchString(q) {
		add(-10, "contains digits")
	}
	if pureAlnum.MatchString(q) && n <= 20 {
		add(-25, "single code")
	}
	if hasKeywords && containsAny(lower, colloquialPhrases) {
		add(-25, "colloquial request")
	}

	c.NeedsAI = c.Score > aiThreshold
	return c
}

// IsGreeting reports whether query is small talk with no catalog keyword.
func (a *ComplexityAnalyzer) IsGreeting(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" || !containsAny(strings.ToLower(q), greetingWords) {
		return false
	}
	return len(a.extractor.ExtractBrands(q)) == 0 &&
		len(a.extractor.ExtractECUTypes(q)) == 0 &&
		len(a.extractor.ExtractComponents(q)) == 0 &&
		a.extractor.ExtractSeries(q) == ""
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if _, ok := indexWord(lower, w); ok {
			return true
		}
	}
	return false
}
