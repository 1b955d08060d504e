package cli

import (
	"context"
	"fmt"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/cache"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/catalog"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/categorizer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/fs"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/index"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/llm"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/memstore"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/ratelimit"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/retriever"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/scorer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/session"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/store"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/usecase"
)

const tokenMinLen = 2

// app is the fully wired search and dialogue stack shared by the commands.
type app struct {
	cfg          *config.Config
	log          logger.ILogger
	extractor    *analyzer.KeywordExtractor
	engine       *retriever.SmartSearchEngine
	understander port.QueryUnderstander
	cache        *cache.Service
	sessions     *session.Manager
	limiter      *ratelimit.Limiter
	chat         *usecase.ChatUseCase
	indexed      *usecase.IndexResult

	snapshot *store.BoltStore
	redis    *ratelimit.RedisStore
}

// buildApp indexes the catalog under dir and wires the dialogue around it.
func buildApp(ctx context.Context, cfg *config.Config, dir string, log logger.ILogger, progress func(done, total int)) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	snapshot, err := store.NewBoltStore(config.CatalogDBPath(dir))
	if err != nil {
		log.Warn("cli", "catalog snapshot unavailable, parsing every start", map[string]interface{}{"error": err.Error()})
		snapshot = nil
	}
	a.snapshot = snapshot

	walker := fs.NewWalker(cfg.Catalog.Includes, cfg.Catalog.Excludes)
	loader := catalog.NewCSVLoader(walker, []string{dir}, cfg.Catalog.SkipHeader, log)

	a.extractor = analyzer.NewKeywordExtractor()
	ix := index.NewSearchIndex(memstore.NewMemoryStore(), a.extractor, analyzer.NewTokenizer(tokenMinLen), cfg.Search.MaxModelSegLen)

	indexUC := usecase.NewIndexUseCase(loader, walker, []string{dir}, snapshot, ix, cfg, log)
	a.indexed, err = indexUC.Index(ctx, progress)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = retriever.NewSmartSearchEngine(ix, scorer.NewSimilarityScorer(a.extractor), a.extractor, cfg.Search.MinScore)

	model, err := llm.NewFromConfig(cfg.LLM, log)
	if err != nil {
		log.Warn("cli", "external model disabled", map[string]interface{}{"error": err.Error()})
		model = nil
	}
	var (
		classifier port.Classifier
		counter    usecase.ModelCounter
	)
	if mc, ok := model.(usecase.ModelCounter); ok {
		counter = mc
	}
	if model != nil {
		a.understander = llm.NewUnderstander(model)
		classifier = llm.NewClassifier(model)
	}

	a.cache = cache.NewService(cache.Options{
		MaxEntries:        cfg.Cache.MaxEntries,
		SearchTTL:         cfg.Cache.SearchTTL,
		InterpretationTTL: cfg.Cache.InterpretationTTL,
		CategorizationTTL: cfg.Cache.CategorizationTTL,
	})
	a.sessions = session.NewManager(nil, session.Options{
		Timeout:         cfg.Dialogue.SessionTimeout,
		PageSize:        cfg.Dialogue.PageSize,
		HistoryCapacity: cfg.Dialogue.HistoryCapacity,
	})
	a.limiter = ratelimit.NewLimiter(a.windowStore(), ratelimit.Limits{
		PerIP:         cfg.RateLimit.PerIP,
		PerSession:    cfg.RateLimit.PerSession,
		PerExternal:   cfg.RateLimit.PerExternal,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		Window:        cfg.RateLimit.Window,
	}, log)

	cat := categorizer.New(a.extractor, classifier, log, categorizer.Options{
		MinResults:        cfg.Dialogue.MaxDirectResults,
		MaxCategories:     cfg.Dialogue.MaxCategories,
		HeuristicCoverage: cfg.Dialogue.HeuristicCoverage,
		SemanticCoverage:  cfg.Dialogue.SemanticCoverage,
	})

	a.chat = usecase.NewChatUseCase(usecase.ChatDeps{
		Engine:       a.engine,
		Extractor:    a.extractor,
		Understander: a.understander,
		Categorizer:  cat,
		Sessions:     a.sessions,
		Cache:        a.cache,
		Limiter:      a.limiter,
		Model:        counter,
		Logger:       log,
	}, usecase.ChatOptions{
		TopK:             cfg.Search.TopK,
		MaxDirectResults: cfg.Dialogue.MaxDirectResults,
	})
	return a, nil
}

// windowStore returns the shared redis windows when configured and reachable,
// otherwise nil so the limiter keeps its in-process windows.
func (a *app) windowStore() ratelimit.WindowStore {
	if a.cfg.RateLimit.RedisAddr == "" {
		return nil
	}
	rs, err := ratelimit.NewRedisStore(ratelimit.RedisConfig{Addr: a.cfg.RateLimit.RedisAddr})
	if err != nil {
		a.log.Warn("cli", "redis unavailable, using in-memory rate limits", map[string]interface{}{
			"addr":  a.cfg.RateLimit.RedisAddr,
			"error": err.Error(),
		})
		return nil
	}
	a.redis = rs
	return rs
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.snapshot != nil {
		_ = a.snapshot.Close()
	}
}
