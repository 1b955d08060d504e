package usecase

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/cache"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/ratelimit"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

var errExternalBudget = errors.New("external call budget exhausted")

type clientIPKey struct{}

func withClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// gatedClassifier answers from the classification cache when the same
// summaries were classified before, and otherwise spends one external call
// from the caller's budget.
type gatedClassifier struct {
	inner   port.Classifier
	cache   *cache.Service
	limiter *ratelimit.Limiter
	denied  *atomic.Int64
}

func (g *gatedClassifier) Classify(ctx context.Context, summaries []string, query string) (domain.Classification, error) {
	if cls, ok := g.cache.GetClassification(query, summaries); ok {
		return cls, nil
	}
	if !g.limiter.AllowExternal(ctx, clientIPFrom(ctx)) {
		g.denied.Add(1)
		return domain.Classification{}, errExternalBudget
	}

	cls, err := g.inner.Classify(ctx, summaries, query)
	if err != nil {
		return domain.Classification{}, err
	}
	g.cache.PutClassification(query, summaries, cls)
	return cls, nil
}
