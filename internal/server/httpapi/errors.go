package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps an error chain to an HTTP status. Recognition is checked
// before deadlines: a recognition timeout carries both.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, common.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, common.ErrRecognition):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, common.ErrStorage):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	detail := err.Error()
	switch status {
	case fiber.StatusInternalServerError:
		s.logger.Error(c.UserContext(), "internal error", "path", c.Path(), "error", err)
		detail = "internal server error"
	case fiber.StatusGatewayTimeout:
		detail = "request timed out"
	}

	return c.Status(status).JSON(fiber.Map{"detail": detail})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, fmt.Sprintf(format, args...))
}
