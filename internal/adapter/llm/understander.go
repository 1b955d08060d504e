package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

const understandSystemPrompt = `You are the assistant of a vehicle circuit-diagram library. Extract the key facts from the user's query and answer with JSON only, no explanation.`

const understandPrompt = `User query: %q

Return exactly this JSON object:
{"brand": "brand name, e.g. Sany, XCMG, RedRock, Caterpillar, Komatsu, Cummins",
 "model": "model or series, e.g. SY215, Hawk, 320D, 2000",
 "component": "component type, e.g. fuse, instrument, ECU, hydraulic, display",
 "ecuType": "ECU code, e.g. CM2880, EDC7, DCM3.7, EDC17C81",
 "queryType": "vehicle diagram or ECU diagram"}

Rules:
1. Use null for anything absent or uncertain.
2. Normalize brand names and fix obvious typos.
3. Models keep their letters and digits (2880, SY215, 320D).
4. Components are reduced to their core word (fuse box diagram -> fuse).

Example: "RedRock Hawk fuse box diagram" -> {"brand":"RedRock","model":"Hawk","component":"fuse","ecuType":null,"queryType":"vehicle diagram"}
Example: "cummins 2880 wiring" -> {"brand":"Cummins","model":null,"component":null,"ecuType":"CM2880","queryType":"ECU diagram"}`

// Understander asks the model to turn free text into query fields.
type Understander struct {
	llm port.LLM
}

func NewUnderstander(llm port.LLM) *Understander {
	return &Understander{llm: llm}
}

func (u *Understander) Understand(ctx context.Context, text string) (domain.QueryInfo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.QueryInfo{}, domain.ErrEmptyMessage
	}
	raw, err := u.llm.GenerateWithSystem(ctx, understandSystemPrompt, fmt.Sprintf(understandPrompt, text))
	if err != nil {
		return domain.QueryInfo{}, fmt.Errorf("understand query: %w", err)
	}
	info, err := ParseQueryInfo(raw)
	if err != nil {
		return domain.QueryInfo{}, fmt.Errorf("understand query: %w", err)
	}
	info.OriginalQuery = text
	return info, nil
}
