package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

var ErrUnparseable = errors.New("model output contains no usable JSON object")

// extractor proposes candidate JSON texts from raw model output.
type extractor struct {
	name    string
	extract func(raw string) []string
}

// strategies are tried in order; the first candidate that decodes and
// validates wins.
var strategies = []extractor{
	{name: "strict", extract: strictCandidate},
	{name: "bracket", extract: bracketCandidate},
	{name: "substring", extract: substringCandidate},
	{name: "scan", extract: scanCandidates},
}

// Parsed is a tagged parse result: the value and the strategy that produced it.
type Parsed[T any] struct {
	Value    T
	Strategy string
}

func parseTagged[T any](raw string, validate func(*T) error) (Parsed[T], error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return Parsed[T]{}, ErrUnparseable
	}
	var lastErr error
	for _, s := range strategies {
		for _, candidate := range s.extract(cleaned) {
			var v T
			if err := json.Unmarshal([]byte(candidate), &v); err != nil {
				lastErr = err
				continue
			}
			if err := validate(&v); err != nil {
				lastErr = err
				continue
			}
			return Parsed[T]{Value: v, Strategy: s.name}, nil
		}
	}
	if lastErr != nil {
		return Parsed[T]{}, fmt.Errorf("%w: %v", ErrUnparseable, lastErr)
	}
	return Parsed[T]{}, ErrUnparseable
}

// ParseClassification reads a category proposal. At least two groups with a
// label and a keyword are required.
func ParseClassification(raw string) (domain.Classification, error) {
	p, err := parseTagged(raw, validateClassification)
	if err != nil {
		return domain.Classification{}, err
	}
	return p.Value, nil
}

func validateClassification(c *domain.Classification) error {
	groups := c.Groups[:0]
	for _, g := range c.Groups {
		g.Label = strings.TrimSpace(g.Label)
		kws := make([]string, 0, len(g.Keywords))
		for _, k := range g.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				kws = append(kws, k)
			}
		}
		if g.Label == "" || len(kws) == 0 {
			continue
		}
		g.Keywords = kws
		groups = append(groups, g)
	}
	if len(groups) < 2 {
		return fmt.Errorf("need at least 2 categories, got %d", len(groups))
	}
	c.Groups = groups
	c.Prompt = strings.TrimSpace(c.Prompt)
	return nil
}

// queryWire accepts null for absent fields.
type queryWire struct {
	Brand     *string `json:"brand"`
	Model     *string `json:"model"`
	Component *string `json:"component"`
	ECUType   *string `json:"ecuType"`
	QueryType *string `json:"queryType"`
}

// ParseQueryInfo reads structured query fields. OriginalQuery is left empty.
func ParseQueryInfo(raw string) (domain.QueryInfo, error) {
	p, err := parseTagged(raw, func(*queryWire) error { return nil })
	if err != nil {
		return domain.QueryInfo{}, err
	}
	w := p.Value
	return domain.QueryInfo{
		Brand:     field(w.Brand),
		Model:     field(w.Model),
		Component: field(w.Component),
		ECUType:   field(w.ECUType),
		QueryType: field(w.QueryType),
	}, nil
}

func field(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "null", "none", "unknown", "n/a", "-":
		return ""
	}
	return v
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func strictCandidate(s string) []string {
	return []string{s}
}

// bracketCandidate returns the first balanced object, honoring strings.
func bracketCandidate(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}
	if end := matchBrace(s, start); end > 0 {
		return []string{s[start : end+1]}
	}
	return nil
}

func substringCandidate(s string) []string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil
	}
	return []string{s[start : end+1]}
}

// scanCandidates returns every balanced object starting at any brace, so an
// object nested after leading junk is still found.
func scanCandidates(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if end := matchBrace(s, i); end > 0 {
			out = append(out, s[i:end+1])
		}
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
