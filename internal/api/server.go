package api

import (
	"github.com/fathima-sithara/dm-service/internal/directory"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type Deps struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Directory     directory.Directory
	Tokens        middleware.TokenValidator
	// Limiter and Hub are optional.
	Limiter *middleware.RateLimiter
	Hub     *ws.Hub
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func NewServer(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "dm-service",
		ErrorHandler: errorHandler(d.Log),
	})
	app.Use(recover.New())
	app.Use(middleware.ZapLogger(d.Log))

	h := &Handlers{convs: d.Conversations, msgs: d.Messages, dir: d.Directory}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return respond(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	})
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	v1 := app.Group("/v1", middleware.JWTAuth(d.Tokens, d.Log))
	if d.Limiter != nil {
		v1.Use(d.Limiter.MiddlewareByKey(middleware.ByUser))
	}

	v1.Post("/conversations", h.createConversation)
	v1.Get("/conversations", h.listConversations)
	v1.Get("/conversations/:id", h.getConversation)
	v1.Post("/conversations/:id/messages", h.sendMessage)
	v1.Get("/conversations/:id/messages", h.listMessages)
	v1.Post("/conversations/:id/read", h.markRead)
	v1.Post("/conversations/:id/repair", h.repairLastMessage)

	v1.Put("/users/me", h.registerUser)
	v1.Post("/users/:id/follow", h.follow)
	v1.Delete("/users/:id/follow", h.unfollow)

	if d.Hub != nil {
		v1.Get("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		}, websocket.New(ws.Handler(d.Hub, d.Log)))
	}

	return app
}
