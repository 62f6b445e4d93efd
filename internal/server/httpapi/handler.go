package httpapi

import (
	"errors"
	"io"
	"strconv"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// bind decodes the body into dst and validates it.
func (s *Server) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return badRequest("malformed request body: %v", err)
	}
	return s.check(dst)
}

func (s *Server) check(dst any) error {
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return badRequest("field %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return badRequest("%v", err)
	}
	return nil
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest("invalid id %q", c.Params("id"))
	}
	return id, nil
}

// upload reads the multipart "file" field.
func upload(c *fiber.Ctx) (models.Upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return models.Upload{}, badRequest("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, badRequest("cannot read upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.Upload{}, badRequest("cannot read upload: %v", err)
	}
	return models.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}
