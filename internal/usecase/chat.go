package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/analyzer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/cache"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/categorizer"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/index"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/ratelimit"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/retriever"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/session"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

type ChatRequest struct {
	SessionID string
	Message   string
	ClientIP  string
}

type SelectRequest struct {
	SessionID   string
	OptionValue string
	ClientIP    string
}

// ChatDeps groups the collaborators of ChatUseCase. Understander may be nil,
// in which case every query goes through local keyword extraction.
type ChatDeps struct {
	Engine       *retriever.SmartSearchEngine
	Extractor    *analyzer.KeywordExtractor
	Complexity   *analyzer.ComplexityAnalyzer
	Understander port.QueryUnderstander
	Categorizer  *categorizer.Categorizer
	Sessions     *session.Manager
	Cache        *cache.Service
	Limiter      *ratelimit.Limiter
	Model        ModelCounter
	Logger       logger.ILogger
}

// ModelCounter reports round trips to the external model.
type ModelCounter interface {
	Stats() (calls, failures int64)
}

type ChatOptions struct {
	TopK             int
	MaxDirectResults int
}

func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		TopK:             retriever.DefaultTopK,
		MaxDirectResults: 5,
	}
}

// ChatUseCase drives the search and narrowing dialogue for one message or
// one option selection at a time.
type ChatUseCase struct {
	engine       *retriever.SmartSearchEngine
	extractor    *analyzer.KeywordExtractor
	complexity   *analyzer.ComplexityAnalyzer
	understander port.QueryUnderstander
	categorizer  *categorizer.Categorizer
	sessions     *session.Manager
	cache        *cache.Service
	limiter      *ratelimit.Limiter
	model        ModelCounter
	log          logger.ILogger
	opts         ChatOptions

	understood       atomic.Int64
	understandFailed atomic.Int64
	keywordSearches  atomic.Int64
	externalDenied   atomic.Int64
}

func NewChatUseCase(deps ChatDeps, opts ChatOptions) *ChatUseCase {
	def := DefaultChatOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MaxDirectResults <= 0 {
		opts.MaxDirectResults = def.MaxDirectResults
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Complexity == nil {
		deps.Complexity = analyzer.NewComplexityAnalyzer(deps.Extractor)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewService(cache.DefaultOptions())
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(nil, session.DefaultOptions())
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(nil, ratelimit.DefaultLimits(), deps.Logger)
	}
	u := &ChatUseCase{
		engine:       deps.Engine,
		extractor:    deps.Extractor,
		complexity:   deps.Complexity,
		understander: deps.Understander,
		categorizer:  deps.Categorizer,
		sessions:     deps.Sessions,
		cache:        deps.Cache,
		limiter:      deps.Limiter,
		model:        deps.Model,
		log:          deps.Logger,
		opts:         opts,
	}
	if u.categorizer != nil && u.categorizer.HasClassifier() {
		u.categorizer = u.categorizer.WithClassifier(&gatedClassifier{
			inner:   u.categorizer.Classifier(),
			cache:   u.cache,
			limiter: u.limiter,
			denied:  &u.externalDenied,
		})
	}
	return u
}

// Chat handles a free-text message: it searches, stores the results as the
// session's new baseline and presents them.
func (u *ChatUseCase) Chat(ctx context.Context, req ChatRequest) (domain.ChatResponse, error) {
	id := strings.TrimSpace(req.SessionID)
	msg := strings.TrimSpace(req.Message)
	if id == "" {
		return domain.ChatResponse{}, domain.ErrEmptySession
	}
	if msg == "" {
		return domain.ChatResponse{}, domain.ErrEmptyMessage
	}

	release, err := u.limiter.Acquire(ctx, req.ClientIP, id)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	defer release()

	if _, err := u.sessions.GetOrCreate(id); err != nil {
		return domain.ChatResponse{}, err
	}

	if u.complexity.IsGreeting(msg) {
		return domain.TextResponse(welcomeText), nil
	}

	results, query, err := u.search(ctx, req.ClientIP, msg)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	docs := retriever.Documents(results)
	if err := u.sessions.SaveSearchResults(id, query, docs); err != nil {
		return domain.ChatResponse{}, err
	}

	u.log.Debug("chat", "search finished", map[string]interface{}{
		"session": id,
		"query":   msg,
		"results": len(docs),
	})
	return u.present(ctx, req.ClientIP, id, docs, query.OriginalQuery, nil, "")
}

// search returns ranked results for msg and the query info that produced
// them. A cached hit carries only the original text.
func (u *ChatUseCase) search(ctx context.Context, ip, msg string) ([]domain.ScoredDocument, domain.QueryInfo, error) {
	if results, ok := u.cache.GetSearch(msg); ok {
		return results, domain.QueryInfo{OriginalQuery: msg}, nil
	}

	query, understood := u.interpret(ctx, ip, msg)

	var (
		results []domain.ScoredDocument
		err     error
	)
	if understood {
		results, err = u.engine.Search(&query, u.opts.TopK)
	} else {
		u.keywordSearches.Add(1)
		results, err = u.engine.SearchByKeyword(msg, u.opts.TopK)
	}
	if err != nil {
		return nil, domain.QueryInfo{}, fmt.Errorf("search %q: %w", msg, err)
	}

	u.cache.PutSearch(msg, results)
	return results, query, nil
}

// interpret returns structured query fields and whether they came from the
// understander. Local extraction is used when the query is simple, when the
// external budget for ip is spent, or when the understander fails.
func (u *ChatUseCase) interpret(ctx context.Context, ip, msg string) (domain.QueryInfo, bool) {
	local := u.extractor.Extract(msg)
	local.OriginalQuery = msg

	if u.understander == nil {
		return local, false
	}
	if q, ok := u.cache.GetInterpretation(msg); ok {
		return q, true
	}

	c := u.complexity.Analyze(msg)
	if !c.NeedsAI {
		return local, false
	}
	if !u.limiter.AllowExternal(ctx, ip) {
		u.externalDenied.Add(1)
		u.log.Info("chat", "external call budget exhausted, using keyword search", map[string]interface{}{"ip": ip})
		return local, false
	}

	q, err := u.understander.Understand(ctx, msg)
	if err != nil || !q.HasValidInfo() {
		u.understandFailed.Add(1)
		details := map[string]interface{}{"query": msg}
		if err != nil {
			details["error"] = err.Error()
		}
		u.log.Warn("chat", "query understanding unavailable, using keyword search", details)
		return local, false
	}

	u.understood.Add(1)
	q.OriginalQuery = msg
	u.cache.PutInterpretation(msg, q)
	return q, true
}

// present picks the response shape for docs: text for none, the document for
// one, a plain choice for a handful, otherwise a categorization or a page.
func (u *ChatUseCase) present(ctx context.Context, ip, id string, docs []domain.Document, query string, used []domain.CategoryType, prefix string) (domain.ChatResponse, error) {
	switch {
	case len(docs) == 0:
		return domain.TextResponse(prefix + noResultText), nil
	case len(docs) == 1:
		return resultResponse(prefix, docs[0]), nil
	case len(docs) <= u.opts.MaxDirectResults:
		return choiceResponse(prefix, docs), nil
	}

	r, err := u.categorize(ctx, ip, docs, used, query)
	if err == nil {
		if err := u.sessions.SetCategorization(id, r); err != nil {
			return domain.ChatResponse{}, err
		}
		return domain.OptionsResponse(prefix+r.Prompt, r.Options), nil
	}
	return u.paginate(id, docs, prefix)
}

func (u *ChatUseCase) paginate(id string, docs []domain.Document, prefix string) (domain.ChatResponse, error) {
	if err := u.sessions.SetPagedResults(id, docs); err != nil {
		return domain.ChatResponse{}, err
	}
	page, err := u.sessions.PageResults(id, 0)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	info, err := u.sessions.PageInfo(id)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	return pageResponse(prefix, page, info), nil
}

func (u *ChatUseCase) categorize(ctx context.Context, ip string, docs []domain.Document, used []domain.CategoryType, query string) (domain.CategoryResult, error) {
	return u.categorizer.Categorize(withClientIP(ctx, ip), docs, used, query)
}

// Select handles an option chosen from a previous response.
func (u *ChatUseCase) Select(ctx context.Context, req SelectRequest) (domain.ChatResponse, error) {
	id := strings.TrimSpace(req.SessionID)
	value := strings.TrimSpace(req.OptionValue)
	if id == "" {
		return domain.ChatResponse{}, domain.ErrEmptySession
	}
	if value == "" {
		return domain.ChatResponse{}, domain.ErrEmptyOption
	}

	release, err := u.limiter.Acquire(ctx, req.ClientIP, id)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	defer release()

	switch {
	case value == NextPageValue:
		return u.nextPage(id)
	case value == BackValue:
		return u.back(ctx, req.ClientIP, id)
	case strings.HasPrefix(value, categorizer.SemanticPrefix), strings.HasPrefix(value, categorizer.HeuristicPrefix):
		return u.selectCategory(ctx, req.ClientIP, id, value)
	}

	docID, err := strconv.Atoi(value)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidOption, value)
	}
	doc, err := u.engine.Document(docID)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	return resultResponse("", doc), nil
}

func (u *ChatUseCase) nextPage(id string) (domain.ChatResponse, error) {
	page, err := u.sessions.NextPage(id)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if len(page) == 0 {
		return domain.TextResponse(lastPageText), nil
	}
	info, err := u.sessions.PageInfo(id)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	return pageResponse("", page, info), nil
}

// back undoes the last accepted selection and presents the restored results
// again.
func (u *ChatUseCase) back(ctx context.Context, ip, id string) (domain.ChatResponse, error) {
	v, err := u.sessions.GoBack(id)
	if errors.Is(err, session.ErrNoHistory) {
		return domain.TextResponse(noHistoryText), nil
	}
	if err != nil {
		return domain.ChatResponse{}, err
	}
	return u.present(ctx, ip, id, v.LastResults, v.LastQuery.OriginalQuery, v.UsedCategoryTypes, wentBackPrefix)
}

func (u *ChatUseCase) selectCategory(ctx context.Context, ip, id, value string) (domain.ChatResponse, error) {
	label, semantic, ok := categorizer.ParseOptionValue(value)
	if !ok {
		return domain.ChatResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidOption, value)
	}
	v, err := u.sessions.Get(id)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	docs, usedType, err := u.resolveSelection(ctx, ip, id, v, label, semantic)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if len(docs) == 0 {
		u.log.Info("chat", "selection matched no documents", map[string]interface{}{
			"session": id,
			"label":   label,
		})
		return domain.TextResponse(fmt.Sprintf(selectionFormat, label)), nil
	}

	if err := u.sessions.UpdateFilteredResults(id, docs, usedType); err != nil {
		return domain.ChatResponse{}, err
	}
	v, err = u.sessions.Get(id)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	prefix := fmt.Sprintf("OK, selected %s. ", label)
	query := v.LastQuery.OriginalQuery

	if semantic && len(docs) > u.opts.MaxDirectResults {
		refined := strings.TrimSpace(query + " " + label)
		r, err := u.categorizer.CategorizeSemantic(withClientIP(ctx, ip), docs, refined)
		if err == nil {
			if err := u.sessions.SetCategorization(id, r); err != nil {
				return domain.ChatResponse{}, err
			}
			return domain.OptionsResponse(prefix+r.Prompt, r.Options), nil
		}
		u.log.Debug("chat", "refined semantic categorization unavailable", map[string]interface{}{
			"query": refined,
			"error": err.Error(),
		})
		r, err = u.categorizer.CategorizeHeuristic(docs, v.UsedCategoryTypes)
		if err != nil {
			return u.paginate(id, docs, prefix)
		}
		if err := u.sessions.SetCategorization(id, r); err != nil {
			return domain.ChatResponse{}, err
		}
		return domain.OptionsResponse(prefix+r.Prompt, r.Options), nil
	}

	return u.present(ctx, ip, id, docs, query, v.UsedCategoryTypes, prefix)
}

// resolveSelection finds the documents for label. It tries, in order, the
// stored bucket, the last categorization's rule on the current results, the
// other keyword dimensions, and finally every dimension on a fresh search of
// the original query, which also resets the session's narrowing.
func (u *ChatUseCase) resolveSelection(ctx context.Context, ip, id string, v session.View, label string, semantic bool) ([]domain.Document, domain.CategoryType, error) {
	if docs := v.CategoryMap[label]; len(docs) > 0 {
		t := v.LastCategoryType
		if semantic {
			t = domain.CategorySemantic
		}
		return docs, t, nil
	}

	if semantic {
		if len(v.CategoryGroups) > 0 {
			if docs := u.categorizer.FilterByCategory(v.LastResults, domain.CategorySemantic, label, v.CategoryGroups); len(docs) > 0 {
				return docs, domain.CategorySemantic, nil
			}
		}
	} else if v.LastCategoryType != "" && v.LastCategoryType != domain.CategorySemantic {
		if docs := u.categorizer.FilterByCategory(v.LastResults, v.LastCategoryType, label, nil); len(docs) > 0 {
			return docs, v.LastCategoryType, nil
		}
	}

	if docs, t := u.filterAnyDimension(v.LastResults, label, v.LastCategoryType); len(docs) > 0 {
		return docs, t, nil
	}

	if v.NarrowingStep == 0 || v.LastQuery.OriginalQuery == "" {
		return nil, "", nil
	}
	results, _, err := u.search(ctx, ip, v.LastQuery.OriginalQuery)
	if err != nil {
		return nil, "", err
	}
	full := retriever.Documents(results)
	docs, t := u.filterAnyDimension(full, label, "")
	if len(docs) == 0 {
		return nil, "", nil
	}
	u.log.Info("chat", "selection recovered from a fresh search", map[string]interface{}{
		"session": id,
		"label":   label,
		"type":    string(t),
	})
	if err := u.sessions.ResetToResults(id, full); err != nil {
		return nil, "", err
	}
	return docs, t, nil
}

func (u *ChatUseCase) filterAnyDimension(docs []domain.Document, label string, skip domain.CategoryType) ([]domain.Document, domain.CategoryType) {
	for _, t := range domain.HeuristicCategoryTypes {
		if t == skip {
			continue
		}
		if found := u.categorizer.FilterByCategory(docs, t, label, nil); len(found) > 0 {
			return found, t
		}
	}
	return nil, ""
}

// Document returns one catalog entry by id.
func (u *ChatUseCase) Document(id int) (domain.Document, error) {
	return u.engine.Document(id)
}

// ClearCache drops every cached search, interpretation and categorization.
func (u *ChatUseCase) ClearCache() {
	u.cache.Clear()
	u.log.Info("chat", "caches cleared", nil)
}

// QueryAnalysis shows how a message would be read without searching.
type QueryAnalysis struct {
	Query      string              `json:"query"`
	Extracted  domain.QueryInfo    `json:"extracted"`
	Complexity analyzer.Complexity `json:"complexity"`
	Greeting   bool                `json:"greeting"`
}

func (u *ChatUseCase) Analyze(query string) QueryAnalysis {
	q := strings.TrimSpace(query)
	return QueryAnalysis{
		Query:      q,
		Extracted:  u.extractor.Extract(q),
		Complexity: u.complexity.Analyze(q),
		Greeting:   u.complexity.IsGreeting(q),
	}
}

type UnderstandingStats struct {
	Understood      int64 `json:"understood"`
	Failed          int64 `json:"failed"`
	KeywordSearches int64 `json:"keywordSearches"`
	ExternalDenied  int64 `json:"externalDenied"`
	ModelCalls      int64 `json:"modelCalls"`
	ModelFailures   int64 `json:"modelFailures"`
}

type Stats struct {
	Index         index.Stats        `json:"index"`
	Sessions      session.Stats      `json:"sessions"`
	Cache         cache.ServiceStats `json:"cache"`
	RateLimit     ratelimit.Stats    `json:"rateLimit"`
	Understanding UnderstandingStats `json:"understanding"`
}

func (u *ChatUseCase) Stats(ctx context.Context) Stats {
	st := Stats{
		Index:     u.engine.Stats(),
		Sessions:  u.sessions.Stats(),
		Cache:     u.cache.Stats(),
		RateLimit: u.limiter.Stats(ctx),
		Understanding: UnderstandingStats{
			Understood:      u.understood.Load(),
			Failed:          u.understandFailed.Load(),
			KeywordSearches: u.keywordSearches.Load(),
			ExternalDenied:  u.externalDenied.Load(),
		},
	}
	if u.model != nil {
		st.Understanding.ModelCalls, st.Understanding.ModelFailures = u.model.Stats()
	}
	return st
}

// ResetStats zeroes the dialogue, cache and rate limit counters. Model call
// counters belong to the client and keep running.
func (u *ChatUseCase) ResetStats() {
	u.understood.Store(0)
	u.understandFailed.Store(0)
	u.keywordSearches.Store(0)
	u.externalDenied.Store(0)
	u.cache.ResetStats()
	u.limiter.ResetStats()
	u.log.Info("chat", "statistics reset", nil)
}
