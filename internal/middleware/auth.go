package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const UserIDKey = "user_id"

type TokenValidator interface {
	Validate(token string) (string, error)
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

// JWTAuth authenticates the bearer token and stores the subject under
// Locals(UserIDKey). Websocket upgrades may pass the token as ?token=
// because browsers cannot set headers on them.
func JWTAuth(v TokenValidator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		if h := c.Get(fiber.HeaderAuthorization); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return fail(c, fiber.StatusUnauthorized, "invalid authorization header")
			}
			token = strings.TrimSpace(parts[1])
		} else if websocket.IsWebSocketUpgrade(c) {
			token = c.Query("token")
		}
		if token == "" {
			return fail(c, fiber.StatusUnauthorized, "missing authorization header")
		}

		userID, err := v.Validate(token)
		if err != nil {
			logger.Debug("jwt rejected", zap.String("path", c.Path()), zap.Error(err))
			return fail(c, fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside JWTAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
