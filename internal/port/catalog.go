package port

import (
	"context"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

// CatalogSource provides the immutable document list once at startup.
type CatalogSource interface {
	Load(ctx context.Context) ([]domain.Document, error)
}
