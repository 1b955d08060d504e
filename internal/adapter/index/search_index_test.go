package index

import (
	"testing"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/memstore"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

func testDocs() []domain.Document {
	return []domain.Document{
		{ID: 1, HierarchyPath: "Vehicle->RedRock->Hawk", FileName: "RedRock_Hawk_fuse box diagram"},
		{ID: 2, HierarchyPath: "Vehicle->RedRock->Genlyon", FileName: "RedRock_Genlyon_instrument wiring"},
		{ID: 3, HierarchyPath: "Vehicle->Dongfeng->Tianlong KL", FileName: "Dongfeng_Tianlong KL_fuse layout"},
		{ID: 4, HierarchyPath: "Engine->Cummins", FileName: "Cummins_CM2880_ECU pin definition"},
		{ID: 5, HierarchyPath: "Machinery->Sany->SY215", FileName: "Sany_SY215_excavator wiring harness"},
	}
}

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	ix := NewSearchIndex(memstore.NewMemoryStore(), analyzer.NewKeywordExtractor(), analyzer.NewTokenizer(2), 10)
	calls := 0
	if err := ix.Build(testDocs(), func(done, total int) { calls++ }); err != nil {
		t.Fatalf("build: %v", err)
	}
	if calls != len(testDocs()) {
		t.Errorf("expected %d progress calls, got %d", len(testDocs()), calls)
	}
	return ix
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchIndex_SearchByBrand(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.SearchByBrand("RedRock"); !equalIDs(got, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
	if got := ix.SearchByBrand("hongyan"); !equalIDs(got, []int{1, 2}) {
		t.Errorf("expected synonym lookup [1 2], got %v", got)
	}
	got := ix.SearchByBrand("Volvo")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil set, got %#v", got)
	}
}

func TestSearchIndex_SearchByModel(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.SearchByModel("Tianlong"); !equalIDs(got, []int{3}) {
		t.Errorf("expected containment match [3], got %v", got)
	}
	if got := ix.SearchByModel("sy215"); !equalIDs(got, []int{5}) {
		t.Errorf("expected [5], got %v", got)
	}
}

func TestSearchIndex_SearchByECU(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.SearchByECU("2880"); !equalIDs(got, []int{4}) {
		t.Errorf("expected shorthand lookup [4], got %v", got)
	}
}

func TestSearchIndex_SearchByComponent(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.SearchByComponent("fuse")
	if !equalIDs(got, []int{1, 3}) {
		t.Errorf("expected [1 3], got %v", got)
	}
}

func TestSearchIndex_SearchFullText(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.SearchFullText("wiring"); !equalIDs(got, []int{2, 5}) {
		t.Errorf("expected [2 5], got %v", got)
	}
	if got := ix.SearchFullText("layo"); !equalIDs(got, []int{3}) {
		t.Errorf("expected substring match [3], got %v", got)
	}
}

func TestSearchIndex_IntersectionSkipsEmptyFields(t *testing.T) {
	ix := newTestIndex(t)

	q := domain.QueryInfo{Brand: "RedRock", Model: "Hawk", ECUType: "EDC17C81"}
	if got := ix.SearchIntersection(q); !equalIDs(got, []int{1}) {
		t.Errorf("expected [1] with ECU skipped, got %v", got)
	}

	if got := ix.SearchIntersection(domain.QueryInfo{Brand: "Volvo"}); got == nil || len(got) != 0 {
		t.Errorf("expected empty set, got %#v", got)
	}
}

func TestSearchIndex_IntersectionSubsetOfUnion(t *testing.T) {
	ix := newTestIndex(t)

	queries := []domain.QueryInfo{
		{Brand: "RedRock", Component: "fuse"},
		{Brand: "Dongfeng", Model: "Hawk"},
		{Component: "wiring harness", Model: "SY215"},
		{ECUType: "CM2880", Brand: "Sany"},
		{},
	}
	for _, q := range queries {
		inter := ix.SearchIntersection(q)
		uni := make(map[int]bool)
		for _, id := range ix.SearchUnion(q) {
			uni[id] = true
		}
		for _, id := range inter {
			if !uni[id] {
				t.Errorf("query %+v: id %d in intersection but not in union", q, id)
			}
		}
	}
}

func TestSearchIndex_DocumentsDropsUnknown(t *testing.T) {
	ix := newTestIndex(t)

	docs := ix.Documents([]int{3, 99, 1})
	if len(docs) != 2 || docs[0].ID != 3 || docs[1].ID != 1 {
		t.Errorf("expected docs 3 and 1 in order, got %+v", docs)
	}
}

func TestSearchIndex_Stats(t *testing.T) {
	ix := newTestIndex(t)

	st := ix.Stats()
	if st.Documents != 5 {
		t.Errorf("expected 5 documents, got %d", st.Documents)
	}
	if st.BrandTokens == 0 || st.FullTextTokens == 0 {
		t.Errorf("expected populated indices, got %+v", st)
	}
}
