package port

import "github.com/boshilin123/chatbot-circuit-diagram/internal/domain"

// Field names one of the inverted indices.
type Field string

const (
	FieldBrand     Field = "brand"
	FieldModel     Field = "model"
	FieldECU       Field = "ecu"
	FieldComponent Field = "component"
	FieldFullText  Field = "fulltext"
)

// IndexStore holds documents and per-field postings (token -> document ids).
type IndexStore interface {
	PutDoc(doc domain.Document) error

	GetDoc(id int) (domain.Document, error)

	ListDocs() ([]domain.Document, error)

	AddPosting(field Field, token string, docID int) error

	// Postings returns the ids indexed under token, or nil.
	Postings(field Field, token string) []int

	// Tokens returns every token indexed under field.
	Tokens(field Field) []string

	DocCount() int
}

// CatalogStore persists a parsed catalog between runs.
type CatalogStore interface {
	PutDocs(docs []domain.Document) error

	ListDocs() ([]domain.Document, error)

	Clear() error

	Close() error
}
