package api

import (
	"context"
	"time"

	"github.com/fathima-sithara/dm-service/internal/directory"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/gofiber/fiber/v2"
)

const requestTimeout = 5 * time.Second

type Handlers struct {
	convs *service.ConversationService
	msgs  *service.MessageService
	dir   directory.Directory
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

type createConversationReq struct {
	PeerID string `json:"peer_id" validate:"required,max=128"`
}

func (h *Handlers) createConversation(c *fiber.Ctx) error {
	var req createConversationReq
	if err := parse(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	conv, err := h.convs.GetOrCreateConversation(ctx, middleware.UserID(c), req.PeerID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, conv)
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	page := domain.Page{
		Limit:  int64(c.QueryInt("limit", 0)),
		Offset: int64(c.QueryInt("offset", 0)),
	}
	convs, err := h.convs.ListConversationsForUser(ctx, middleware.UserID(c), page)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, convs)
}

func (h *Handlers) getConversation(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	conv, err := h.convs.GetConversation(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, conv)
}

type sendMessageReq struct {
	Body string `json:"body" validate:"required"`
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := parse(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	msg, err := h.msgs.AppendMessage(ctx, c.Params("id"), middleware.UserID(c), req.Body)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, msg)
}

func (h *Handlers) listMessages(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	msgs, err := h.msgs.ListMessages(ctx, c.Params("id"), middleware.UserID(c),
		c.QueryInt("page", 1), c.QueryInt("page_size", domain.DefaultPageSize))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, msgs)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.msgs.MarkAllRead(ctx, c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"marked": n})
}

func (h *Handlers) repairLastMessage(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Params("id")
	if _, err := h.convs.GetConversation(ctx, id, middleware.UserID(c)); err != nil {
		return err
	}
	if err := h.msgs.RepairLastMessage(ctx, id); err != nil {
		return err
	}
	conv, err := h.convs.GetConversation(ctx, id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, conv)
}

type registerUserReq struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
}

func (h *Handlers) registerUser(c *fiber.Ctx) error {
	var req registerUserReq
	if err := parse(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id := middleware.UserID(c)
	if err := h.dir.CreateUser(ctx, id, req.Username); err != nil {
		return domain.StorageError("create user", err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (h *Handlers) follow(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.dir.Follow(ctx, middleware.UserID(c), c.Params("id")); err != nil {
		return directoryError("follow", err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"following": c.Params("id")})
}

func (h *Handlers) unfollow(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.dir.Unfollow(ctx, middleware.UserID(c), c.Params("id")); err != nil {
		return directoryError("unfollow", err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"unfollowed": c.Params("id")})
}

// directoryError keeps the directory's domain errors and wraps the rest.
func directoryError(op string, err error) error {
	if statusFor(err) != fiber.StatusInternalServerError {
		return err
	}
	return domain.StorageError(op, err)
}
