package categorizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

var (
	modelPattern = regexp.MustCompile(`[A-Z]{1,3}\d{2,4}[A-Z]?`)
	ecuPattern   = regexp.MustCompile(`CM\d{3,4}|EDC\d{2}[A-Z]\d{2}|EDC\d{1,2}|DCM\d\.\d|WISE\d{2}|Bosch[\d.]+|Denso|Delphi`)
)

// componentGroup is a user-facing component class. A document belongs to the
// first group that it includes and does not exclude.
type componentGroup struct {
	label   string
	include []string
	exclude []string
}

var ecuWords = []string{"ECU", "ECM", "DCU", "BCM", "VECU", "VCU", "TCU", "controller", "computer board"}

var componentGroups = []componentGroup{
	{label: "vehicle diagram", include: []string{"vehicle diagram", "whole vehicle", "full vehicle", "complete vehicle"}},
	{label: "ECU/controller", include: ecuWords},
	{label: "instrument/display", include: []string{"instrument", "display", "dashboard", "cluster", "gauge"}, exclude: ecuWords},
	{label: "fuse box", include: []string{"fuse", "fusebox", "junction box", "power distribution"}},
	{label: "pin definition", include: []string{"pin definition", "pinout", "pin diagram", "interface definition"}},
	{label: "wiring harness", include: []string{"harness", "wiring", "connector"}},
}

// genericWords never serve as model labels.
var genericWords = []string{
	"vehicle diagram", "circuit diagram", "diagram", "pin definition", "harness", "wiring",
	"instrument", "fuse", "sensor", "relay", "engine", "ecu",
	"excavator", "loader", "bulldozer", "road roller", "crane",
	"heavy truck", "light truck", "tractor", "dump truck", "mixer truck",
}

var prompts = map[domain.CategoryType]string{
	domain.CategoryBrand:     "Which brand do you need?",
	domain.CategoryModel:     "Which model or series do you need?",
	domain.CategoryComponent: "Which kind of diagram do you need?",
	domain.CategoryECU:       "Which ECU type do you need?",
	domain.CategorySemantic:  "Please choose the category closest to what you need:",
}

// brandOf returns the first vocabulary brand named by the document.
func brandOf(e *analyzer.KeywordExtractor, doc domain.Document) string {
	if brands := e.ExtractBrands(doc.Text()); len(brands) > 0 {
		return brands[0]
	}
	return ""
}

func componentOf(doc domain.Document) string {
	text := doc.Text()
	for _, g := range componentGroups {
		if matchesGroup(text, g) {
			return g.label
		}
	}
	return ""
}

func matchesGroup(text string, g componentGroup) bool {
	included := false
	for _, w := range g.include {
		if analyzer.ContainsWord(text, w) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, w := range g.exclude {
		if analyzer.ContainsWord(text, w) {
			return false
		}
	}
	return true
}

func ecuOf(doc domain.Document) string {
	return ecuPattern.FindString(doc.Text())
}

// modelOf extracts the model or series from a file name shaped like
// brand_model_description, falling back to an alphanumeric model code.
func modelOf(doc domain.Document) string {
	parts := strings.Split(doc.FileName, "_")
	if len(parts) >= 2 {
		candidate := strings.TrimSpace(parts[1])
		if n := utf8.RuneCountInString(candidate); !isGeneric(candidate) && n >= 2 && n <= 20 {
			return candidate
		}
		if len(parts) >= 3 {
			candidate = strings.TrimSpace(parts[2])
			if n := utf8.RuneCountInString(candidate); !isGeneric(candidate) && n >= 2 && n <= 15 {
				return candidate
			}
		}
	}
	return modelPattern.FindString(doc.FileName)
}

func isGeneric(word string) bool {
	lower := strings.ToLower(word)
	for _, g := range genericWords {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}

// matchesModel reports whether doc belongs under a model label: either the
// label is the doc's own extracted model or the doc names it as a whole word.
func matchesModel(doc domain.Document, label string) bool {
	if strings.EqualFold(modelOf(doc), label) {
		return true
	}
	return analyzer.ContainsWord(doc.Text(), label)
}

// groupBy buckets docs by key in order of first appearance, skipping empty keys.
func groupBy(docs []domain.Document, key func(domain.Document) string) []domain.Bucket {
	index := map[string]int{}
	var buckets []domain.Bucket
	for _, d := range docs {
		k := key(d)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, domain.Bucket{Label: k})
		}
		buckets[i].Docs = append(buckets[i].Docs, d)
	}
	return buckets
}

// bucketsFor partitions docs along one heuristic dimension.
func (c *Categorizer) bucketsFor(t domain.CategoryType, docs []domain.Document) []domain.Bucket {
	switch t {
	case domain.CategoryBrand:
		return groupBy(docs, func(d domain.Document) string { return brandOf(c.extractor, d) })
	case domain.CategoryModel:
		var labels []string
		for _, d := range docs {
			labels = append(labels, modelOf(d))
		}
		return resolveExclusive(docs, labels, matchesModel)
	case domain.CategoryComponent:
		return groupBy(docs, componentOf)
	case domain.CategoryECU:
		return groupBy(docs, ecuOf)
	}
	return nil
}
