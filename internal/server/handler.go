package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/usecase"
)

type ChatController struct {
	chat ChatService
	log  logger.ILogger
}

func NewChatController(chat ChatService, log logger.ILogger) *ChatController {
	return &ChatController{chat: chat, log: log}
}

func (h *ChatController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Post("/chat", h.Chat)
	r.Post("/select", h.Select)
	r.Get("/document/:id", h.Document)
	r.Post("/query/analyze", h.Analyze)
	r.Get("/stats", h.Stats)
	r.Post("/stats/reset", h.ResetStats)
	r.Post("/cache/clear", h.ClearCache)
}

func (h *ChatController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(SuccessResponse(fiber.Map{"status": "ok"}))
}

func (h *ChatController) Chat(ctx *fiber.Ctx) error {
	var req ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := ValidateRequest(&req); err != nil {
		return err
	}

	resp, err := h.chat.Chat(ctx.UserContext(), usecase.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		ClientIP:  clientIP(ctx),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(SuccessResponse(resp))
}

func (h *ChatController) Select(ctx *fiber.Ctx) error {
	var req SelectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := ValidateRequest(&req); err != nil {
		return err
	}

	resp, err := h.chat.Select(ctx.UserContext(), usecase.SelectRequest{
		SessionID:   req.SessionID,
		OptionValue: req.OptionValue,
		ClientIP:    clientIP(ctx),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(SuccessResponse(resp))
}

func (h *ChatController) Document(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	doc, err := h.chat.Document(id)
	if err != nil {
		return err
	}
	return ctx.JSON(SuccessResponse(doc))
}

func (h *ChatController) Analyze(ctx *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := ValidateRequest(&req); err != nil {
		return err
	}
	return ctx.JSON(SuccessResponse(h.chat.Analyze(req.Query)))
}

func (h *ChatController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(SuccessResponse(h.chat.Stats(ctx.UserContext())))
}

func (h *ChatController) ResetStats(ctx *fiber.Ctx) error {
	h.chat.ResetStats()
	return ctx.JSON(SuccessResponse(fiber.Map{"reset": true}))
}

func (h *ChatController) ClearCache(ctx *fiber.Ctx) error {
	h.chat.ClearCache()
	return ctx.JSON(SuccessResponse(fiber.Map{"cleared": true}))
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(ctx *fiber.Ctx) string {
	if fwd := ctx.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	return ctx.IP()
}
