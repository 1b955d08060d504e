package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/index"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/store"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

// IndexUseCase loads the catalog and builds the in-memory search index.
// When a snapshot store is given, an unchanged catalog is read from the
// snapshot instead of being parsed again.
type IndexUseCase struct {
	source   port.CatalogSource
	walker   port.FileWalker
	roots    []string
	snapshot *store.BoltStore
	index    *index.SearchIndex
	cfg      *config.Config
	log      logger.ILogger
}

// NewIndexUseCase creates a new index use case. snapshot may be nil.
func NewIndexUseCase(
	source port.CatalogSource,
	walker port.FileWalker,
	roots []string,
	snapshot *store.BoltStore,
	ix *index.SearchIndex,
	cfg *config.Config,
	log logger.ILogger,
) *IndexUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &IndexUseCase{
		source:   source,
		walker:   walker,
		roots:    roots,
		snapshot: snapshot,
		index:    ix,
		cfg:      cfg,
		log:      log,
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Files        int
	Documents    int
	FromSnapshot bool
	Reason       string
	Index        index.Stats
	Duration     time.Duration
}

// Index loads the documents and builds the index. progress, if set, is
// called as documents are added.
func (u *IndexUseCase) Index(ctx context.Context, progress func(done, total int)) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	var files []port.FileInfo
	for _, root := range u.roots {
		found, err := u.walker.Walk(root)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
		files = append(files, found...)
	}
	result.Files = len(files)
	catalogHash := store.ComputeCatalogHash(files)

	docs, err := u.loadSnapshot(catalogHash, result)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs, err = u.source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := u.saveSnapshot(docs, catalogHash); err != nil {
			u.log.Warn("index", "failed to write catalog snapshot", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := u.index.Build(docs, progress); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	result.Documents = len(docs)
	result.Index = u.index.Stats()
	result.Duration = time.Since(start)

	u.log.Info("index", "index built", map[string]interface{}{
		"files":         result.Files,
		"documents":     result.Documents,
		"from_snapshot": result.FromSnapshot,
		"duration_ms":   result.Duration.Milliseconds(),
	})
	return result, nil
}

// loadSnapshot returns the stored documents when they are still valid for
// catalogHash, or nil when the catalog has to be parsed.
func (u *IndexUseCase) loadSnapshot(catalogHash string, result *IndexResult) ([]domain.Document, error) {
	if u.snapshot == nil {
		result.Reason = "no snapshot store"
		return nil, nil
	}
	check, err := u.snapshot.CheckMigration(u.cfg, catalogHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if check.NeedsRebuild || check.NeedsMigration {
		result.Reason = check.Reason
		return nil, nil
	}

	docs, err := u.snapshot.ListDocs()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(docs) == 0 {
		result.Reason = "empty snapshot"
		return nil, nil
	}
	result.FromSnapshot = true
	return docs, nil
}

func (u *IndexUseCase) saveSnapshot(docs []domain.Document, catalogHash string) error {
	if u.snapshot == nil {
		return nil
	}
	if err := u.snapshot.Clear(); err != nil {
		return err
	}
	if err := u.snapshot.PutDocs(docs); err != nil {
		return err
	}
	return u.snapshot.Migrate(u.cfg, catalogHash)
}
