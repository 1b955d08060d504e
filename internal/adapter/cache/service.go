package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

// searchSynonyms collapse phrasings that retrieve the same documents.
// Applied in order, before generic words are stripped.
var searchSynonyms = []struct {
	from *regexp.Regexp
	to   string
}{
	{wordPattern("pin diagram"), "pin definition"},
	{wordPattern("pinout"), "pin definition"},
	{wordPattern("fuse box"), "fuse"},
	{wordPattern("junction box"), "fuse"},
	{wordPattern("fusebox"), "fuse"},
}

var genericSearchWords = []*regexp.Regexp{
	wordPattern("circuit diagrams"),
	wordPattern("circuit diagram"),
	wordPattern("wiring diagram"),
	wordPattern("diagrams"),
	wordPattern("diagram"),
	wordPattern("drawings"),
	wordPattern("drawing"),
	wordPattern("schematics"),
	wordPattern("schematic"),
	wordPattern("documents"),
}

func wordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// NormalizeSearchKey maps equivalent search phrasings onto one key.
func NormalizeSearchKey(query string) string {
	s := strings.ToLower(strings.Join(strings.Fields(query), " "))
	for _, syn := range searchSynonyms {
		s = syn.from.ReplaceAllString(s, syn.to)
	}
	for _, g := range genericSearchWords {
		s = g.ReplaceAllString(s, " ")
	}
	normalized := strings.Join(strings.Fields(s), " ")
	if normalized == "" {
		return strings.ToLower(strings.TrimSpace(query))
	}
	return normalized
}

// ClassificationKey keys a classifier answer by the query and the exact
// summaries it was asked about, so two result sets never share an answer.
func ClassificationKey(query string, summaries []string) string {
	h := sha256.New()
	for _, line := range summaries {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return strings.TrimSpace(query) + "|" + hex.EncodeToString(h.Sum(nil)[:8])
}

type Options struct {
	MaxEntries        int
	SearchTTL         time.Duration
	InterpretationTTL time.Duration
	CategorizationTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxEntries:        1000,
		SearchTTL:         30 * time.Minute,
		InterpretationTTL: 2 * time.Hour,
		CategorizationTTL: 2 * time.Hour,
	}
}

// Service groups the search, interpretation and categorization caches.
type Service struct {
	search         *Cache[string, []domain.ScoredDocument]
	interpretation *Cache[string, domain.QueryInfo]
	categorization *Cache[string, domain.Classification]
}

func NewService(opts Options) *Service {
	def := DefaultOptions()
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = def.MaxEntries
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = def.SearchTTL
	}
	if opts.InterpretationTTL <= 0 {
		opts.InterpretationTTL = def.InterpretationTTL
	}
	if opts.CategorizationTTL <= 0 {
		opts.CategorizationTTL = def.CategorizationTTL
	}
	return &Service{
		search:         New[string, []domain.ScoredDocument](opts.SearchTTL, opts.MaxEntries),
		interpretation: New[string, domain.QueryInfo](opts.InterpretationTTL, opts.MaxEntries),
		categorization: New[string, domain.Classification](opts.CategorizationTTL, opts.MaxEntries),
	}
}

func (s *Service) GetSearch(query string) ([]domain.ScoredDocument, bool) {
	return s.search.Get(NormalizeSearchKey(query))
}

func (s *Service) PutSearch(query string, results []domain.ScoredDocument) {
	s.search.Put(NormalizeSearchKey(query), results)
}

func (s *Service) GetInterpretation(query string) (domain.QueryInfo, bool) {
	return s.interpretation.Get(strings.TrimSpace(query))
}

func (s *Service) PutInterpretation(query string, info domain.QueryInfo) {
	s.interpretation.Put(strings.TrimSpace(query), info)
}

func (s *Service) GetClassification(query string, summaries []string) (domain.Classification, bool) {
	return s.categorization.Get(ClassificationKey(query, summaries))
}

func (s *Service) PutClassification(query string, summaries []string, cls domain.Classification) {
	s.categorization.Put(ClassificationKey(query, summaries), cls)
}

func (s *Service) Clear() {
	s.search.Clear()
	s.interpretation.Clear()
	s.categorization.Clear()
}

// Sweep drops expired entries from all caches.
func (s *Service) Sweep() int {
	return s.search.Sweep() + s.interpretation.Sweep() + s.categorization.Sweep()
}

type ServiceStats struct {
	Search         Stats `json:"search"`
	Interpretation Stats `json:"interpretation"`
	Categorization Stats `json:"categorization"`
}

func (s *Service) ResetStats() {
	s.search.ResetStats()
	s.interpretation.ResetStats()
	s.categorization.ResetStats()
}

func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Search:         s.search.Stats(),
		Interpretation: s.interpretation.Stats(),
		Categorization: s.categorization.Stats(),
	}
}
