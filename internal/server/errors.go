package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
)

// statusFor maps an error to an HTTP status and the message shown to the
// client. Unexpected errors are hidden behind a generic message.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.Is(err, errValidation), domain.IsInputError(err):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSessionNotFound):
		return fiber.StatusNotFound, "Session expired, please start a new search."
	case errors.Is(err, domain.ErrDocumentNotFound):
		return fiber.StatusNotFound, "Document not found."
	case errors.Is(err, domain.ErrConcurrencyLimit):
		return fiber.StatusTooManyRequests, "The server is busy, please try again shortly."
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests, "Too many requests, please slow down."
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	}
	return fiber.StatusInternalServerError, "Internal server error."
}

func errorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, msg := statusFor(err)
		details := map[string]interface{}{
			"path":   c.Path(),
			"status": status,
			"error":  err.Error(),
		}
		if rid, ok := c.Locals("requestid").(string); ok {
			details["request_id"] = rid
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("server", "request failed", details)
		case status == fiber.StatusTooManyRequests:
			log.Warn("server", "request throttled", details)
		default:
			log.Debug("server", "request rejected", details)
		}
		return c.Status(status).JSON(ErrorResponse(msg))
	}
}
