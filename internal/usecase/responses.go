package usecase

import (
	"fmt"
	"strconv"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/session"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

const (
	NextPageValue = "next_page"
	BackValue     = "back"
)

const (
	welcomeText     = "Hello! Tell me which circuit diagram you need, for example a brand, a model, an ECU type or a component such as \"Dongfeng Tianlong EDC17 wiring\"."
	noResultText    = "Sorry, no matching circuit diagram was found. Try a different brand, model or component name."
	lastPageText    = "This is already the last page."
	noHistoryText   = "There is no earlier step to go back to."
	wentBackPrefix  = "Went back one step. "
	selectionFormat = "No documents match \"%s\" any more. Please pick another option or start a new search."
)

func documentLabel(doc domain.Document) string {
	return fmt.Sprintf("[ID: %d] %s", doc.ID, doc.FileName)
}

func documentOptions(docs []domain.Document) []domain.Option {
	opts := make([]domain.Option, len(docs))
	for i, d := range docs {
		opts[i] = domain.Option{
			ID:          i + 1,
			DisplayText: documentLabel(d),
			Value:       strconv.Itoa(d.ID),
		}
	}
	return opts
}

func resultResponse(prefix string, doc domain.Document) domain.ChatResponse {
	return domain.ResultResponse(prefix+documentLabel(doc), doc)
}

func choiceResponse(prefix string, docs []domain.Document) domain.ChatResponse {
	prompt := fmt.Sprintf("%sFound %d matching documents, please choose one:", prefix, len(docs))
	return domain.OptionsResponse(prompt, documentOptions(docs))
}

// pageResponse lists one page of documents and, when more remain, a next page
// option labeled with the page it leads to.
func pageResponse(prefix string, page []domain.Document, info session.PageInfo) domain.ChatResponse {
	opts := documentOptions(page)
	if info.HasNextPage() {
		opts = append(opts, domain.Option{
			ID:          len(opts) + 1,
			DisplayText: fmt.Sprintf("Next page (%d/%d)", info.CurrentPage+1, info.TotalPages),
			Value:       NextPageValue,
		})
	}
	prompt := fmt.Sprintf("%sFound %d documents, showing page %d of %d:", prefix, info.TotalResults, info.CurrentPage, info.TotalPages)
	return domain.OptionsResponse(prompt, opts)
}
