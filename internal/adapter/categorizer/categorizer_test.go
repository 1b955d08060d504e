package categorizer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

type stubClassifier struct {
	cls   domain.Classification
	err   error
	calls int
	got   []string
}

func (s *stubClassifier) Classify(_ context.Context, summaries []string, _ string) (domain.Classification, error) {
	s.calls++
	s.got = summaries
	return s.cls, s.err
}

func newCategorizer(cl *stubClassifier) *Categorizer {
	if cl == nil {
		return New(analyzer.NewKeywordExtractor(), nil, nil, DefaultOptions())
	}
	return New(analyzer.NewKeywordExtractor(), cl, nil, DefaultOptions())
}

// brandCatalog returns n docs spread over three brands with distinct series.
func brandCatalog(n int) []domain.Document {
	brands := []struct{ brand, series string }{
		{"RedRock", "Hawk"},
		{"Dongfeng", "Tianlong"},
		{"Sany", "SY215"},
	}
	var docs []domain.Document
	for i := 0; i < n; i++ {
		b := brands[i%len(brands)]
		docs = append(docs, domain.Document{
			ID:            i + 1,
			HierarchyPath: fmt.Sprintf("Vehicle->%s->%s", b.brand, b.series),
			FileName:      fmt.Sprintf("%s_%s_fuse box %d", b.brand, b.series, i),
		})
	}
	return docs
}

func assertDisjoint(t *testing.T, r domain.CategoryResult) {
	t.Helper()
	seen := map[int]string{}
	for _, b := range r.Buckets {
		for _, d := range b.Docs {
			if prev, ok := seen[d.ID]; ok {
				t.Errorf("doc %d in both %q and %q", d.ID, prev, b.Label)
			}
			seen[d.ID] = b.Label
		}
	}
}

func TestCategorizeHeuristic_Brand(t *testing.T) {
	c := newCategorizer(nil)
	docs := brandCatalog(40)

	r, err := c.CategorizeHeuristic(docs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Type != domain.CategoryBrand {
		t.Fatalf("expected brand categorization, got %s", r.Type)
	}
	if len(r.Options) != 3 {
		t.Errorf("expected 3 options, got %d", len(r.Options))
	}
	if float64(r.Covered())/40 < 0.6 {
		t.Errorf("coverage %d/40 below threshold", r.Covered())
	}
	if r.Options[0].Value != "category:RedRock" {
		t.Errorf("expected largest bucket first with category prefix, got %+v", r.Options[0])
	}
	assertDisjoint(t, r)
}

func TestCategorizeHeuristic_SkipsUsed(t *testing.T) {
	c := newCategorizer(nil)

	r, err := c.CategorizeHeuristic(brandCatalog(40), []domain.CategoryType{domain.CategoryBrand})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Type != domain.CategoryModel {
		t.Errorf("expected model after brand is used, got %s", r.Type)
	}
	assertDisjoint(t, r)
}

func TestCategorizeHeuristic_TooFewDocs(t *testing.T) {
	c := newCategorizer(nil)

	if _, err := c.CategorizeHeuristic(brandCatalog(5), nil); !errors.Is(err, domain.ErrNoCategorization) {
		t.Errorf("expected ErrNoCategorization, got %v", err)
	}
}

func TestCategorizeHeuristic_NoSeparableDimension(t *testing.T) {
	c := newCategorizer(nil)
	var docs []domain.Document
	for i := 1; i <= 20; i++ {
		docs = append(docs, domain.Document{ID: i, HierarchyPath: "Misc", FileName: fmt.Sprintf("sheet %d", i)})
	}

	if _, err := c.CategorizeHeuristic(docs, nil); !errors.Is(err, domain.ErrNoCategorization) {
		t.Errorf("expected ErrNoCategorization, got %v", err)
	}
}

func TestCategorizeHeuristic_DropsSingletonsAndCaps(t *testing.T) {
	c := newCategorizer(nil)
	brands := []string{"RedRock", "Dongfeng", "Sany", "XCMG", "Foton", "Shacman", "Beiben", "Hualing"}
	var docs []domain.Document
	id := 1
	for _, b := range brands {
		for k := 0; k < 3; k++ {
			docs = append(docs, domain.Document{ID: id, HierarchyPath: "Vehicle->" + b, FileName: b + "_part_wiring"})
			id++
		}
	}
	docs = append(docs, domain.Document{ID: id, HierarchyPath: "Vehicle->JAC", FileName: "JAC_part_wiring"})

	r, err := c.CategorizeHeuristic(docs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Options) != 6 {
		t.Errorf("expected 6 options, got %d", len(r.Options))
	}
	for _, b := range r.Buckets {
		if b.Label == "JAC" {
			t.Error("singleton bucket should be dropped")
		}
	}
}

func TestModelBuckets_LongestLabelWins(t *testing.T) {
	c := newCategorizer(nil)
	var docs []domain.Document
	for i := 1; i <= 4; i++ {
		docs = append(docs, domain.Document{ID: i, HierarchyPath: "Vehicle->Dongfeng", FileName: fmt.Sprintf("Dongfeng_Tianlong_fuse %d", i)})
	}
	for i := 5; i <= 8; i++ {
		docs = append(docs, domain.Document{ID: i, HierarchyPath: "Vehicle->Dongfeng", FileName: fmt.Sprintf("Dongfeng_Tianlong KL_fuse %d", i)})
	}

	buckets := c.bucketsFor(domain.CategoryModel, docs)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", buckets)
	}
	if buckets[0].Label != "Tianlong KL" || len(buckets[0].Docs) != 4 {
		t.Errorf("expected Tianlong KL bucket with 4 docs first, got %q (%d)", buckets[0].Label, len(buckets[0].Docs))
	}
	if len(buckets[1].Docs) != 4 {
		t.Errorf("expected Tianlong bucket to keep only its own 4 docs, got %d", len(buckets[1].Docs))
	}
	assertDisjoint(t, domain.CategoryResult{Buckets: buckets})
}

func TestModelOf(t *testing.T) {
	tests := []struct {
		file, want string
	}{
		{"Dongfeng_Tianlong D320_BCM pin definition", "Tianlong D320"},
		{"Sany_excavator_SY215C", "SY215C"},
		{"Sany_excavator wiring_circuit diagram", ""},
		{"Cummins ISM11 wiring", "ISM11"},
	}
	for _, tt := range tests {
		if got := modelOf(domain.Document{FileName: tt.file}); got != tt.want {
			t.Errorf("modelOf(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestComponentOf_InstrumentExcludesECU(t *testing.T) {
	tests := []struct {
		file, want string
	}{
		{"RedRock_Hawk_instrument cluster", "instrument/display"},
		{"RedRock_Hawk_instrument ECU", "ECU/controller"},
		{"RedRock_Hawk_fuse box", "fuse box"},
		{"Cummins_pinout", "pin definition"},
		{"Sany_main harness", "wiring harness"},
		{"Sany_manual", ""},
	}
	for _, tt := range tests {
		if got := componentOf(domain.Document{FileName: tt.file}); got != tt.want {
			t.Errorf("componentOf(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestEcuOf(t *testing.T) {
	if got := ecuOf(domain.Document{FileName: "Weichai_EDC17C53_pins"}); got != "EDC17C53" {
		t.Errorf("expected EDC17C53, got %q", got)
	}
	if got := ecuOf(domain.Document{FileName: "Cummins_CM2880_pins"}); got != "CM2880" {
		t.Errorf("expected CM2880, got %q", got)
	}
}

func TestFilterByCategory_MatchesBuckets(t *testing.T) {
	c := newCategorizer(nil)
	docs := brandCatalog(40)

	for _, used := range [][]domain.CategoryType{nil, {domain.CategoryBrand}} {
		r, err := c.CategorizeHeuristic(docs, used)
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range r.Buckets {
			got := c.FilterByCategory(docs, r.Type, b.Label, nil)
			if fmt.Sprint(domain.DocumentIDs(got)) != fmt.Sprint(domain.DocumentIDs(b.Docs)) {
				t.Errorf("%s/%s: filter %v differs from bucket %v", r.Type, b.Label, domain.DocumentIDs(got), domain.DocumentIDs(b.Docs))
			}
		}
	}
}

func TestCategorizeSemantic(t *testing.T) {
	cl := &stubClassifier{cls: domain.Classification{
		Prompt: "Which system?",
		Groups: []domain.LabeledGroup{
			{Label: "Truck fuse boxes", Keywords: []string{"Hawk", "Tianlong", "truck", "fuse box"}},
			{Label: "Machinery", Keywords: []string{"SY215", "Sany", "excavator"}},
		},
	}}
	c := newCategorizer(cl)
	docs := brandCatalog(30)

	r, err := c.Categorize(context.Background(), docs, nil, "fuse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Type != domain.CategorySemantic {
		t.Fatalf("expected semantic, got %s", r.Type)
	}
	if r.Prompt != "Which system?" {
		t.Errorf("expected classifier prompt, got %q", r.Prompt)
	}
	if r.Options[0].Value != "ai_category:Truck fuse boxes" {
		t.Errorf("unexpected option %+v", r.Options[0])
	}
	if r.Covered() != 30 {
		t.Errorf("expected every doc covered, got %d", r.Covered())
	}
	assertDisjoint(t, r)

	if len(cl.got) != 31 {
		t.Errorf("expected 30 summaries plus brand counts, got %d", len(cl.got))
	}

	got := c.FilterByCategory(docs, domain.CategorySemantic, "Machinery", r.Groups)
	if len(got) != 10 {
		t.Errorf("expected 10 machinery docs, got %d", len(got))
	}
}

func TestCategorize_ClassifierFailureFallsBack(t *testing.T) {
	cl := &stubClassifier{err: errors.New("timeout")}
	c := newCategorizer(cl)

	r, err := c.Categorize(context.Background(), brandCatalog(40), nil, "fuse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Type != domain.CategoryBrand {
		t.Errorf("expected heuristic fallback, got %s", r.Type)
	}
	if cl.calls != 1 {
		t.Errorf("expected one classifier call, got %d", cl.calls)
	}
}

func TestCategorize_SemanticUsedSkipsClassifier(t *testing.T) {
	cl := &stubClassifier{}
	c := newCategorizer(cl)

	if _, err := c.Categorize(context.Background(), brandCatalog(40), []domain.CategoryType{domain.CategorySemantic}, "fuse"); err != nil {
		t.Fatal(err)
	}
	if cl.calls != 0 {
		t.Errorf("classifier should not be called, got %d calls", cl.calls)
	}
}

func TestWithClassifier(t *testing.T) {
	first := &stubClassifier{err: errors.New("timeout")}
	second := &stubClassifier{}
	c := newCategorizer(first)
	swapped := c.WithClassifier(second)

	if c.Classifier() != first || swapped.Classifier() != second {
		t.Fatal("WithClassifier must not modify the receiver")
	}
	if _, err := swapped.Categorize(context.Background(), brandCatalog(40), nil, "fuse"); err != nil {
		t.Fatal(err)
	}
	if first.calls != 0 || second.calls != 1 {
		t.Errorf("calls: first=%d second=%d", first.calls, second.calls)
	}
}

func TestSummaries_Bounded(t *testing.T) {
	s := Summaries(analyzer.NewKeywordExtractor(), brandCatalog(120))
	if len(s) != summaryLimit+1 {
		t.Fatalf("expected %d lines, got %d", summaryLimit+1, len(s))
	}
	if s[len(s)-1] != "Total 120 documents. Brand counts: Dongfeng: 40, RedRock: 40, Sany: 40" {
		t.Errorf("unexpected brand line %q", s[len(s)-1])
	}
}

func TestMatchesKeywords(t *testing.T) {
	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		// one strong hit out of three
		{"RedRock_Hawk_fuse", []string{"fuse", "relay", "junction"}, true},
		// one strong hit out of four is below 30%
		{"RedRock_Hawk_fuse", []string{"fuse", "relay", "junction", "breaker"}, false},
		// partial hits only: needs half and at least two
		{"Tianlongs_instruments", []string{"tianlongx", "instrumentz"}, true},
		{"Tianlongs", []string{"tianlongx", "instrumentz"}, false},
		{"anything", nil, false},
	}
	for _, tt := range tests {
		if got := matchesKeywords(tt.text, tt.keywords); got != tt.want {
			t.Errorf("matchesKeywords(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
		}
	}
}

func TestParseOptionValue(t *testing.T) {
	label, semantic, ok := ParseOptionValue("ai_category:Truck fuse boxes")
	if !ok || !semantic || label != "Truck fuse boxes" {
		t.Errorf("unexpected parse: %q %v %v", label, semantic, ok)
	}
	label, semantic, ok = ParseOptionValue("category:RedRock")
	if !ok || semantic || label != "RedRock" {
		t.Errorf("unexpected parse: %q %v %v", label, semantic, ok)
	}
	if _, _, ok := ParseOptionValue("category:"); ok {
		t.Error("empty label should not parse")
	}
	if _, _, ok := ParseOptionValue("next_page"); ok {
		t.Error("non-category value should not parse")
	}
}

func TestResolveExclusive_Pure(t *testing.T) {
	docs := []domain.Document{
		{ID: 1, FileName: "X Premium"},
		{ID: 2, FileName: "X basic"},
	}
	labels := []string{"X", "X Premium"}
	match := func(d domain.Document, l string) bool { return analyzer.ContainsWord(d.FileName, l) }

	first := resolveExclusive(docs, labels, match)
	second := resolveExclusive(docs, labels, match)
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Error("fold is not deterministic")
	}
	if len(first) != 2 || first[0].Label != "X Premium" || len(first[1].Docs) != 1 || first[1].Docs[0].ID != 2 {
		t.Errorf("unexpected buckets %+v", first)
	}
	if len(labels) != 2 || labels[0] != "X" {
		t.Error("input labels were mutated")
	}
}
