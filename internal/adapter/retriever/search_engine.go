package retriever

import (
	"errors"
	"sort"
	"strings"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/index"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/scorer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

var ErrNilQuery = errors.New("search query must not be nil")

const (
	DefaultTopK     = 100
	DefaultMinScore = 10.0
)

// SmartSearchEngine runs the tiered lookup (intersection, union, full text)
// and ranks candidates with the similarity scorer.
type SmartSearchEngine struct {
	index     *index.SearchIndex
	scorer    *scorer.SimilarityScorer
	extractor *analyzer.KeywordExtractor
	minScore  float64
}

// NewSmartSearchEngine creates a new search engine.
func NewSmartSearchEngine(ix *index.SearchIndex, sc *scorer.SimilarityScorer, extractor *analyzer.KeywordExtractor, minScore float64) *SmartSearchEngine {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &SmartSearchEngine{
		index:     ix,
		scorer:    sc,
		extractor: extractor,
		minScore:  minScore,
	}
}

// Search returns at most topK documents ordered by score. No match is an
// empty result, not an error.
func (e *SmartSearchEngine) Search(q *domain.QueryInfo, topK int) ([]domain.ScoredDocument, error) {
	if q == nil {
		return nil, ErrNilQuery
	}

	ids := e.index.SearchIntersection(*q)
	if len(ids) == 0 {
		ids = e.index.SearchUnion(*q)
	}
	if len(ids) == 0 {
		ids = e.fullTextFallback(*q)
	}
	return e.rank(ids, *q, topK), nil
}

// SearchByKeyword extracts a query from raw text and searches with it, or
// searches the full-text index directly when nothing typed was found.
func (e *SmartSearchEngine) SearchByKeyword(text string, topK int) ([]domain.ScoredDocument, error) {
	q := e.extractor.Extract(text)
	if q.HasValidInfo() {
		return e.Search(&q, topK)
	}
	ids := e.index.SearchFullText(text)
	return e.rank(ids, q, topK), nil
}

func (e *SmartSearchEngine) fullTextFallback(q domain.QueryInfo) []int {
	var ids []int
	for _, term := range []string{q.Brand, q.Model, q.Component, q.ECUType, q.OriginalQuery} {
		if strings.TrimSpace(term) == "" {
			continue
		}
		ids = mergeIDs(ids, e.index.SearchFullText(term))
	}
	return ids
}

func (e *SmartSearchEngine) rank(ids []int, q domain.QueryInfo, topK int) []domain.ScoredDocument {
	if topK <= 0 {
		topK = DefaultTopK
	}
	docs := e.index.Documents(ids)

	results := make([]domain.ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		score := e.scorer.Score(doc, q)
		if score < e.minScore {
			continue
		}
		results = append(results, domain.ScoredDocument{Doc: doc, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Document returns a single catalog entry by id.
func (e *SmartSearchEngine) Document(id int) (domain.Document, error) {
	return e.index.Document(id)
}

func (e *SmartSearchEngine) Stats() index.Stats {
	return e.index.Stats()
}

// Documents strips scores, keeping order.
func Documents(results []domain.ScoredDocument) []domain.Document {
	docs := make([]domain.Document, len(results))
	for i, r := range results {
		docs[i] = r.Doc
	}
	return docs
}

func mergeIDs(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
