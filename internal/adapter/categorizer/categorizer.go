package categorizer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

const (
	HeuristicPrefix = "category:"
	SemanticPrefix  = "ai_category:"

	minBuckets = 2
)

type Options struct {
	MinResults        int
	MaxCategories     int
	HeuristicCoverage float64
	SemanticCoverage  float64
}

func DefaultOptions() Options {
	return Options{
		MinResults:        5,
		MaxCategories:     6,
		HeuristicCoverage: 0.6,
		SemanticCoverage:  0.4,
	}
}

// Categorizer partitions oversized result sets into mutually exclusive,
// labeled buckets. The classifier is optional.
type Categorizer struct {
	extractor  *analyzer.KeywordExtractor
	classifier port.Classifier
	log        logger.ILogger
	opts       Options
}

func New(extractor *analyzer.KeywordExtractor, classifier port.Classifier, log logger.ILogger, opts Options) *Categorizer {
	def := DefaultOptions()
	if opts.MinResults <= 0 {
		opts.MinResults = def.MinResults
	}
	if opts.MaxCategories < minBuckets {
		opts.MaxCategories = def.MaxCategories
	}
	if opts.HeuristicCoverage <= 0 {
		opts.HeuristicCoverage = def.HeuristicCoverage
	}
	if opts.SemanticCoverage <= 0 {
		opts.SemanticCoverage = def.SemanticCoverage
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Categorizer{extractor: extractor, classifier: classifier, log: log, opts: opts}
}

func (c *Categorizer) HasClassifier() bool {
	return c.classifier != nil
}

func (c *Categorizer) Classifier() port.Classifier {
	return c.classifier
}

// WithClassifier returns a copy of c that asks classifier instead.
func (c *Categorizer) WithClassifier(classifier port.Classifier) *Categorizer {
	cp := *c
	cp.classifier = classifier
	return &cp
}

// Categorize tries the semantic partition first when a classifier is
// configured, then each unused heuristic dimension in priority order.
func (c *Categorizer) Categorize(ctx context.Context, docs []domain.Document, used []domain.CategoryType, query string) (domain.CategoryResult, error) {
	if c.classifier != nil && !containsType(used, domain.CategorySemantic) {
		r, err := c.CategorizeSemantic(ctx, docs, query)
		if err == nil {
			return r, nil
		}
		c.log.Warn("categorizer", "semantic categorization unavailable, using heuristics", map[string]interface{}{
			"error": err.Error(),
			"query": query,
		})
	}
	return c.CategorizeHeuristic(docs, used)
}

// CategorizeHeuristic returns the first keyword dimension whose partition is
// acceptable, or ErrNoCategorization.
func (c *Categorizer) CategorizeHeuristic(docs []domain.Document, used []domain.CategoryType) (domain.CategoryResult, error) {
	if len(docs) <= c.opts.MinResults {
		return domain.CategoryResult{}, domain.ErrNoCategorization
	}
	for _, t := range domain.HeuristicCategoryTypes {
		if containsType(used, t) {
			continue
		}
		buckets, ok := c.finalize(c.bucketsFor(t, docs), len(docs), c.opts.HeuristicCoverage, true)
		if !ok {
			c.log.Debug("categorizer", "dimension rejected", map[string]interface{}{"type": string(t), "docs": len(docs)})
			continue
		}
		return build(t, prompts[t], HeuristicPrefix, buckets, nil), nil
	}
	return domain.CategoryResult{}, domain.ErrNoCategorization
}

// CategorizeSemantic asks the classifier for labeled keyword groups and maps
// documents onto them.
func (c *Categorizer) CategorizeSemantic(ctx context.Context, docs []domain.Document, query string) (domain.CategoryResult, error) {
	if c.classifier == nil {
		return domain.CategoryResult{}, domain.ErrNoCategorization
	}
	if len(docs) <= c.opts.MinResults {
		return domain.CategoryResult{}, domain.ErrNoCategorization
	}

	cls, err := c.classifier.Classify(ctx, Summaries(c.extractor, docs), query)
	if err != nil {
		return domain.CategoryResult{}, fmt.Errorf("%w: %v", domain.ErrNoCategorization, err)
	}
	return c.FromClassification(docs, cls)
}

// FromClassification maps docs onto an already obtained classification.
func (c *Categorizer) FromClassification(docs []domain.Document, cls domain.Classification) (domain.CategoryResult, error) {
	if len(cls.Groups) < minBuckets {
		return domain.CategoryResult{}, domain.ErrNoCategorization
	}
	buckets, ok := c.finalize(semanticBuckets(docs, cls.Groups), len(docs), c.opts.SemanticCoverage, false)
	if !ok {
		return domain.CategoryResult{}, domain.ErrNoCategorization
	}
	prompt := strings.TrimSpace(cls.Prompt)
	if prompt == "" {
		prompt = prompts[domain.CategorySemantic]
	}
	return build(domain.CategorySemantic, prompt, SemanticPrefix, buckets, cls.Groups), nil
}

// FilterByCategory re-applies the assignment rule that built the bucket named
// label. groups is only consulted for semantic categories.
func (c *Categorizer) FilterByCategory(docs []domain.Document, t domain.CategoryType, label string, groups []domain.LabeledGroup) []domain.Document {
	var buckets []domain.Bucket
	if t == domain.CategorySemantic {
		buckets = semanticBuckets(docs, groups)
	} else {
		buckets = c.bucketsFor(t, docs)
	}
	for _, b := range buckets {
		if b.Label == label {
			return b.Docs
		}
	}
	return nil
}

// finalize drops singletons when required, orders by size, caps the count and
// checks coverage.
func (c *Categorizer) finalize(buckets []domain.Bucket, total int, minCoverage float64, dropSingletons bool) ([]domain.Bucket, bool) {
	kept := make([]domain.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if len(b.Docs) == 0 || (dropSingletons && len(b.Docs) < 2) {
			continue
		}
		kept = append(kept, b)
	}
	sort.SliceStable(kept, func(i, j int) bool { return len(kept[i].Docs) > len(kept[j].Docs) })
	if len(kept) > c.opts.MaxCategories {
		kept = kept[:c.opts.MaxCategories]
	}
	if len(kept) < minBuckets || total == 0 {
		return nil, false
	}

	covered := 0
	for _, b := range kept {
		covered += len(b.Docs)
	}
	if float64(covered)/float64(total) < minCoverage {
		return nil, false
	}
	return kept, true
}

func build(t domain.CategoryType, prompt, prefix string, buckets []domain.Bucket, groups []domain.LabeledGroup) domain.CategoryResult {
	options := make([]domain.Option, len(buckets))
	for i, b := range buckets {
		options[i] = domain.Option{
			ID:          i + 1,
			DisplayText: fmt.Sprintf("%s (%d)", b.Label, len(b.Docs)),
			Value:       prefix + b.Label,
		}
	}
	return domain.CategoryResult{Type: t, Prompt: prompt, Options: options, Buckets: buckets, Groups: groups}
}

// ParseOptionValue splits a category option value into its label and whether
// it came from the semantic partition.
func ParseOptionValue(value string) (label string, semantic bool, ok bool) {
	switch {
	case strings.HasPrefix(value, SemanticPrefix):
		label = strings.TrimPrefix(value, SemanticPrefix)
		return label, true, label != ""
	case strings.HasPrefix(value, HeuristicPrefix):
		label = strings.TrimPrefix(value, HeuristicPrefix)
		return label, false, label != ""
	}
	return "", false, false
}

func containsType(types []domain.CategoryType, t domain.CategoryType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
