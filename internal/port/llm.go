package port

import (
	"context"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

// LLM represents a chat-completion language model.
type LLM interface {
	// Generate generates text based on the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithSystem generates text with a system prompt.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// QueryUnderstander turns free text into structured query fields.
// An error or a result without typed fields means "fall back to keyword search".
type QueryUnderstander interface {
	Understand(ctx context.Context, text string) (domain.QueryInfo, error)
}

// Classifier proposes a semantic partition for a set of document summaries.
type Classifier interface {
	Classify(ctx context.Context, summaries []string, originalQuery string) (domain.Classification, error)
}
