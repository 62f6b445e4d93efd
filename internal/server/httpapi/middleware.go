package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

const (
	requestIDKey = "requestid"
	identityKey  = "identity"
)

// authRequired resolves the bearer token to an identity and stores it in
// the request locals.
func (s *Server) authRequired(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	id, err := s.svc.Users.Identify(c.UserContext(), strings.TrimSpace(token))
	if err != nil {
		return err
	}

	c.Locals(identityKey, id)
	return c.Next()
}

func caller(c *fiber.Ctx) models.Identity {
	id, _ := c.Locals(identityKey).(models.Identity)
	return id
}

// requestLogger writes one line per request. Errors are rendered here so
// the logged status is the one the client sees.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	if chainErr := c.Next(); chainErr != nil {
		if err := c.App().Config().ErrorHandler(c, chainErr); err != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	args := []any{
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start),
		"request_id", c.Locals(requestIDKey),
	}
	if id, ok := c.Locals(identityKey).(models.Identity); ok {
		args = append(args, "user_id", id.ID)
	}

	switch {
	case status >= fiber.StatusInternalServerError:
		s.logger.Error(c.UserContext(), "request", args...)
	case status >= fiber.StatusBadRequest:
		s.logger.Warn(c.UserContext(), "request", args...)
	default:
		s.logger.Info(c.UserContext(), "request", args...)
	}
	return nil
}
