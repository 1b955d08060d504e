package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

// MemoryStore is the in-process IndexStore. Postings are kept sorted and
// free of duplicates.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[int]domain.Document
	postings map[port.Field]map[string][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[int]domain.Document),
		postings: make(map[port.Field]map[string][]int),
	}
}

func (s *MemoryStore) PutDoc(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDoc(id int) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %d", domain.ErrDocumentNotFound, id)
	}
	return doc, nil
}

// ListDocs returns every document in ascending id order.
func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) AddPosting(field port.Field, token string, docID int) error {
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byToken, ok := s.postings[field]
	if !ok {
		byToken = make(map[string][]int)
		s.postings[field] = byToken
	}
	ids := byToken[token]
	i := sort.SearchInts(ids, docID)
	if i < len(ids) && ids[i] == docID {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = docID
	byToken[token] = ids
	return nil
}

func (s *MemoryStore) Postings(field port.Field, token string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.postings[field][token]
	if len(ids) == 0 {
		return nil
	}
	return append([]int(nil), ids...)
}

func (s *MemoryStore) Tokens(field port.Field) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := make([]string, 0, len(s.postings[field]))
	for t := range s.postings[field] {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

func (s *MemoryStore) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
