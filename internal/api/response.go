package api

import (
	"errors"
	"fmt"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details []ValidationError `json:"details,omitempty"`
}

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(envelope{Success: true, Data: data})
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type requestError struct {
	details []ValidationError
}

func (e *requestError) Error() string { return "invalid request" }

var validate = validator.New()

// parse decodes the JSON body into v and runs its validate tags.
func parse(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validate.Struct(v); err != nil {
		return &requestError{details: FormatValidationErrors(err)}
	}
	return nil
}

// FormatValidationErrors converts validator.ValidationErrors into a slice of ValidationError
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "min":
			out[i].Message = fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
		default:
			out[i].Message = fmt.Sprintf("validation failed on field '%s' for tag '%s'", fe.Field(), fe.Tag())
		}
	}
	return out
}

// statusFor maps domain errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case domain.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotMutuallyConnected),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrSenderNotParticipant):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrConversationNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var re *requestError
		if errors.As(err, &re) {
			return c.Status(fiber.StatusBadRequest).JSON(envelope{Error: re.Error(), Details: re.details})
		}

		status := statusFor(err)
		msg := err.Error()
		if status >= fiber.StatusInternalServerError {
			log.Error("request error", zap.String("path", c.Path()), zap.Error(err))
			msg = "internal server error"
		} else {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				msg = fe.Message
			}
		}
		return c.Status(status).JSON(envelope{Error: msg})
	}
}
