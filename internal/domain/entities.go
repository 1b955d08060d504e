package domain

import "strings"

// Document is one catalog entry describing a circuit diagram.
type Document struct {
	ID            int      `json:"id"`
	HierarchyPath string   `json:"hierarchyPath"`
	FileName      string   `json:"fileName"`
	Keywords      []string `json:"keywords,omitempty"`
}

// Text returns the searchable text of the document.
func (d Document) Text() string {
	return d.FileName + " " + d.HierarchyPath
}

// PathSegments splits the hierarchy path on "->".
func (d Document) PathSegments() []string {
	if d.HierarchyPath == "" {
		return nil
	}
	parts := strings.Split(d.HierarchyPath, "->")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

type QueryInfo struct {
	Brand         string `json:"brand,omitempty"`
	Model         string `json:"model,omitempty"`
	Component     string `json:"component,omitempty"`
	ECUType       string `json:"ecuType,omitempty"`
	QueryType     string `json:"queryType,omitempty"`
	OriginalQuery string `json:"originalQuery"`
}

// HasValidInfo reports whether at least one typed field is set.
func (q QueryInfo) HasValidInfo() bool {
	return q.Brand != "" || q.Model != "" || q.Component != "" || q.ECUType != ""
}

type ScoredDocument struct {
	Doc   Document
	Score float64
}

type CategoryType string

const (
	CategoryBrand     CategoryType = "brand"
	CategoryModel     CategoryType = "model"
	CategoryComponent CategoryType = "component"
	CategoryECU       CategoryType = "ecu"
	CategorySemantic  CategoryType = "semantic"
)

// HeuristicCategoryTypes lists the keyword dimensions in priority order.
var HeuristicCategoryTypes = []CategoryType{CategoryBrand, CategoryModel, CategoryComponent, CategoryECU}

type Option struct {
	ID          int    `json:"id"`
	DisplayText string `json:"text"`
	Value       string `json:"value"`
}

// Bucket is one labeled partition of a result set.
type Bucket struct {
	Label string
	Docs  []Document
}

type CategoryResult struct {
	Type    CategoryType
	Prompt  string
	Options []Option
	Buckets []Bucket
	// Groups is set for semantic results so selections can be re-matched.
	Groups []LabeledGroup
}

// CategoryMap returns the buckets keyed by label.
func (r CategoryResult) CategoryMap() map[string][]Document {
	m := make(map[string][]Document, len(r.Buckets))
	for _, b := range r.Buckets {
		m[b.Label] = b.Docs
	}
	return m
}

// Covered returns the number of documents across all buckets.
func (r CategoryResult) Covered() int {
	n := 0
	for _, b := range r.Buckets {
		n += len(b.Docs)
	}
	return n
}

type LabeledGroup struct {
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
}

// Classification is the structure returned by the external classifier.
type Classification struct {
	Prompt string         `json:"prompt"`
	Groups []LabeledGroup `json:"categories"`
}

type ResponseKind string

const (
	KindText    ResponseKind = "text"
	KindOptions ResponseKind = "options"
	KindResult  ResponseKind = "result"
)

type ChatResponse struct {
	Kind     ResponseKind `json:"type"`
	Content  string       `json:"content"`
	Options  []Option     `json:"options,omitempty"`
	Document *Document    `json:"document,omitempty"`
}

func TextResponse(content string) ChatResponse {
	return ChatResponse{Kind: KindText, Content: content}
}

func OptionsResponse(prompt string, options []Option) ChatResponse {
	return ChatResponse{Kind: KindOptions, Content: prompt, Options: options}
}

func ResultResponse(content string, doc Document) ChatResponse {
	return ChatResponse{Kind: KindResult, Content: content, Document: &doc}
}

// DocumentIDs returns the ids of docs in order.
func DocumentIDs(docs []Document) []int {
	ids := make([]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
