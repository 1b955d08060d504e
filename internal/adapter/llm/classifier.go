package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

const classifySystemPrompt = `You organize circuit-diagram search results into a few categories a user can pick from. Answer with JSON only.`

const classifyPrompt = `The user searched for: %q
There are %d results. Summary:
%s

Split the results into 2 to 6 mutually exclusive categories that help the user narrow down.
Each category needs a short label, a description and the keywords that identify its documents.
Prefer distinctions the user cares about: vehicle series, diagram type, component, ECU.

Return:
{"prompt": "one short question to ask the user",
 "categories": [{"label": "...", "description": "...", "keywords": ["...", "..."]}]}`

var errNoSummaries = errors.New("no summaries to classify")

// Classifier proposes semantic categories for a result set.
type Classifier struct {
	llm port.LLM
}

func NewClassifier(llm port.LLM) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, summaries []string, originalQuery string) (domain.Classification, error) {
	if len(summaries) == 0 {
		return domain.Classification{}, errNoSummaries
	}
	prompt := fmt.Sprintf(classifyPrompt, originalQuery, countEntries(summaries), strings.Join(summaries, "\n"))
	raw, err := c.llm.GenerateWithSystem(ctx, classifySystemPrompt, prompt)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify: %w", err)
	}
	cls, err := ParseClassification(raw)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify: %w", err)
	}
	return cls, nil
}

// countEntries reads the total from the trailing aggregate line when present.
func countEntries(summaries []string) int {
	last := summaries[len(summaries)-1]
	var n int
	if _, err := fmt.Sscanf(last, "Total %d documents.", &n); err == nil {
		return n
	}
	return len(summaries)
}
