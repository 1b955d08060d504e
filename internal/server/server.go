package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/usecase"
)

const bodyLimit = 64 * 1024

// ChatService is the dialogue surface exposed over HTTP.
type ChatService interface {
	Chat(ctx context.Context, req usecase.ChatRequest) (domain.ChatResponse, error)
	Select(ctx context.Context, req usecase.SelectRequest) (domain.ChatResponse, error)
	Document(id int) (domain.Document, error)
	Analyze(query string) usecase.QueryAnalysis
	Stats(ctx context.Context) usecase.Stats
	ResetStats()
	ClearCache()
}

type Server struct {
	app  *fiber.App
	port string
	log  logger.ILogger
}

func New(cfg config.ServerConfig, chat ChatService, log logger.ILogger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "circuit-diagram-chatbot",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(requestLogger(log))

	api := app.Group("/api")
	NewChatController(chat, log).RegisterRoutes(api)

	return &Server{app: app, port: cfg.Port, log: log}
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	s.log.Info("server", "listening", map[string]interface{}{"port": s.port})
	return s.app.Listen(":" + s.port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server", "shutting down", nil)
	return s.app.ShutdownWithContext(ctx)
}

func requestLogger(log logger.ILogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("server", "request", map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetRespHeader(fiber.HeaderXRequestID),
		})
		return err
	}
}
