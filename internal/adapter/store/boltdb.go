package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

var _ port.CatalogStore = (*BoltStore)(nil)

var (
	bucketDocs = []byte("docs")
	bucketMeta = []byte("meta")
	keyStats   = []byte("catalog_stats")
)

// BoltStore persists the parsed catalog so later runs can skip CSV parsing
// when the source files are unchanged.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type docRecord struct {
	HierarchyPath string   `json:"hierarchy_path"`
	FileName      string   `json:"file_name"`
	Keywords      []string `json:"keywords,omitempty"`
}

// docKey encodes ids big-endian so ForEach walks them in ascending order.
func docKey(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func decodeDoc(k, v []byte) (domain.Document, error) {
	var rec docRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:            int(binary.BigEndian.Uint64(k)),
		HierarchyPath: rec.HierarchyPath,
		FileName:      rec.FileName,
		Keywords:      rec.Keywords,
	}, nil
}

// PutDocs writes all documents in a single transaction.
func (s *BoltStore) PutDocs(docs []domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		for _, doc := range docs {
			data, err := json.Marshal(docRecord{
				HierarchyPath: doc.HierarchyPath,
				FileName:      doc.FileName,
				Keywords:      doc.Keywords,
			})
			if err != nil {
				return err
			}
			if err := b.Put(docKey(doc.ID), data); err != nil {
				return err
			}
		}
		return putJSON(tx.Bucket(bucketMeta), keyStats, Stats{
			Documents: countKeys(b),
			UpdatedAt: time.Now().Unix(),
		})
	})
}

func (s *BoltStore) GetDoc(id int) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		k := docKey(id)
		data := tx.Bucket(bucketDocs).Get(k)
		if data == nil {
			return fmt.Errorf("%w: %d", domain.ErrDocumentNotFound, id)
		}
		var err error
		doc, err = decodeDoc(k, data)
		return err
	})
	return doc, err
}

// ListDocs returns every stored document ordered by id.
func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			doc, err := decodeDoc(k, v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) DocCount() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = countKeys(tx.Bucket(bucketDocs))
		return nil
	})
	return n, err
}

type Stats struct {
	Documents int   `json:"documents"`
	UpdatedAt int64 `json:"updated_at"`
}

func (s *BoltStore) GetStats() (Stats, error) {
	var st Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &st)
	})
	return st, err
}

func countKeys(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func putJSON(b *bbolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
