package cache

import (
	"context"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

// CachedUnderstander memoizes successful interpretations. Failures and
// results without typed fields are not cached.
type CachedUnderstander struct {
	understander port.QueryUnderstander
	cache        *Service
}

func NewCachedUnderstander(understander port.QueryUnderstander, cache *Service) *CachedUnderstander {
	return &CachedUnderstander{
		understander: understander,
		cache:        cache,
	}
}

func (u *CachedUnderstander) Understand(ctx context.Context, text string) (domain.QueryInfo, error) {
	if info, hit := u.cache.GetInterpretation(text); hit {
		return info, nil
	}

	info, err := u.understander.Understand(ctx, text)
	if err != nil {
		return domain.QueryInfo{}, err
	}

	if info.HasValidInfo() {
		u.cache.PutInterpretation(text, info)
	}
	return info, nil
}
