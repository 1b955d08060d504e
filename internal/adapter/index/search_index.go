package index

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

// minContainLen is the shortest term allowed to match by substring containment.
const minContainLen = 2

// Stats summarizes index sizes.
type Stats struct {
	Documents       int `json:"documents"`
	BrandTokens     int `json:"brandTokens"`
	ModelTokens     int `json:"modelTokens"`
	ECUTokens       int `json:"ecuTokens"`
	ComponentTokens int `json:"componentTokens"`
	FullTextTokens  int `json:"fullTextTokens"`
}

// SearchIndex holds the five inverted indices over the catalog. It is built
// once with Build and only read afterwards.
type SearchIndex struct {
	store          port.IndexStore
	extractor      *analyzer.KeywordExtractor
	tokenizer      *analyzer.Tokenizer
	maxModelSegLen int
}

func NewSearchIndex(store port.IndexStore, extractor *analyzer.KeywordExtractor, tokenizer *analyzer.Tokenizer, maxModelSegLen int) *SearchIndex {
	if maxModelSegLen <= 0 {
		maxModelSegLen = 10
	}
	return &SearchIndex{
		store:          store,
		extractor:      extractor,
		tokenizer:      tokenizer,
		maxModelSegLen: maxModelSegLen,
	}
}

// Build indexes every document. progress, when non-nil, is called after each one.
func (ix *SearchIndex) Build(docs []domain.Document, progress func(done, total int)) error {
	for i, doc := range docs {
		if err := ix.add(doc); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}
	return nil
}

func (ix *SearchIndex) add(doc domain.Document) error {
	if err := ix.store.PutDoc(doc); err != nil {
		return err
	}
	text := doc.Text()

	postings := map[port.Field][]string{
		port.FieldBrand:     ix.extractor.ExtractBrands(text),
		port.FieldECU:       ix.extractor.ExtractECUTypes(text),
		port.FieldComponent: ix.extractor.ExtractComponents(text),
		port.FieldModel:     ix.modelCandidates(doc),
		port.FieldFullText:  ix.tokenizer.Tokenize(text + " " + strings.Join(doc.Keywords, " ")),
	}
	for field, tokens := range postings {
		for _, tok := range tokens {
			if err := ix.store.AddPosting(field, strings.ToLower(tok), doc.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// modelCandidates returns path segments that look like a model: they contain
// a digit or are short, plus any series named in the file name.
func (ix *SearchIndex) modelCandidates(doc domain.Document) []string {
	var out []string
	for _, seg := range doc.PathSegments() {
		if strings.ContainsFunc(seg, unicode.IsDigit) || utf8.RuneCountInString(seg) <= ix.maxModelSegLen {
			out = append(out, seg)
		}
	}
	if s := ix.extractor.ExtractSeries(doc.FileName); s != "" {
		out = append(out, s)
	}
	return out
}

// SearchByBrand looks the brand and its synonyms up exactly.
func (ix *SearchIndex) SearchByBrand(term string) []int {
	return ix.lookupVariants(port.FieldBrand, term)
}

// SearchByECU looks the ECU code and its synonyms up exactly.
func (ix *SearchIndex) SearchByECU(term string) []int {
	return ix.lookupVariants(port.FieldECU, term)
}

// SearchByModel matches model tokens exactly or by containment in either direction.
func (ix *SearchIndex) SearchByModel(term string) []int {
	return ix.lookupContaining(port.FieldModel, term, true)
}

// SearchByComponent matches component tokens exactly, through synonyms, or by
// containment in either direction.
func (ix *SearchIndex) SearchByComponent(term string) []int {
	ids := ix.lookupVariants(port.FieldComponent, term)
	return union(ids, ix.lookupContaining(port.FieldComponent, term, true))
}

// SearchFullText unions exact token hits with tokens that contain a query word.
func (ix *SearchIndex) SearchFullText(term string) []int {
	result := []int{}
	words := ix.tokenizer.Tokenize(term)
	if len(words) == 0 {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" {
			words = []string{t}
		}
	}
	for _, w := range words {
		result = union(result, ix.lookupContaining(port.FieldFullText, w, false))
	}
	return result
}

// SearchIntersection intersects the non-empty per-field hit sets of q.
// Fields with no hits are skipped rather than treated as exclusions.
func (ix *SearchIndex) SearchIntersection(q domain.QueryInfo) []int {
	var result []int
	started := false
	for _, ids := range ix.fieldHits(q) {
		if len(ids) == 0 {
			continue
		}
		if !started {
			result, started = ids, true
			continue
		}
		result = intersect(result, ids)
	}
	if result == nil {
		return []int{}
	}
	return result
}

// SearchUnion unions every per-field hit set of q.
func (ix *SearchIndex) SearchUnion(q domain.QueryInfo) []int {
	result := []int{}
	for _, ids := range ix.fieldHits(q) {
		result = union(result, ids)
	}
	return result
}

func (ix *SearchIndex) fieldHits(q domain.QueryInfo) [][]int {
	var hits [][]int
	if q.Brand != "" {
		hits = append(hits, ix.SearchByBrand(q.Brand))
	}
	if q.Model != "" {
		hits = append(hits, ix.SearchByModel(q.Model))
	}
	if q.ECUType != "" {
		hits = append(hits, ix.SearchByECU(q.ECUType))
	}
	if q.Component != "" {
		hits = append(hits, ix.SearchByComponent(q.Component))
	}
	return hits
}

// Documents resolves ids in the given order, silently dropping unknown ids.
func (ix *SearchIndex) Documents(ids []int) []domain.Document {
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, err := ix.store.GetDoc(id); err == nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (ix *SearchIndex) Document(id int) (domain.Document, error) {
	return ix.store.GetDoc(id)
}

func (ix *SearchIndex) AllDocuments() []domain.Document {
	docs, _ := ix.store.ListDocs()
	return docs
}

func (ix *SearchIndex) Stats() Stats {
	return Stats{
		Documents:       ix.store.DocCount(),
		BrandTokens:     len(ix.store.Tokens(port.FieldBrand)),
		ModelTokens:     len(ix.store.Tokens(port.FieldModel)),
		ECUTokens:       len(ix.store.Tokens(port.FieldECU)),
		ComponentTokens: len(ix.store.Tokens(port.FieldComponent)),
		FullTextTokens:  len(ix.store.Tokens(port.FieldFullText)),
	}
}

func (ix *SearchIndex) lookupVariants(field port.Field, term string) []int {
	result := []int{}
	for _, v := range ix.extractor.Variants(term) {
		result = union(result, ix.store.Postings(field, strings.ToLower(v)))
	}
	return result
}

// lookupContaining returns ids under tokens equal to term or containing it.
// With both set, tokens contained in term match as well.
func (ix *SearchIndex) lookupContaining(field port.Field, term string, both bool) []int {
	t := strings.ToLower(strings.TrimSpace(term))
	result := []int{}
	if t == "" {
		return result
	}
	result = union(result, ix.store.Postings(field, t))
	if utf8.RuneCountInString(t) < minContainLen {
		return result
	}
	for _, tok := range ix.store.Tokens(field) {
		if tok == t {
			continue
		}
		if strings.Contains(tok, t) || (both && utf8.RuneCountInString(tok) >= minContainLen && strings.Contains(t, tok)) {
			result = union(result, ix.store.Postings(field, tok))
		}
	}
	return result
}

// union merges two ascending id lists.
func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// intersect keeps ids present in both ascending lists.
func intersect(a, b []int) []int {
	out := []int{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
