package httpapi

import (
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) recognize(c *fiber.Ctx) error {
	up, err := upload(c)
	if err != nil {
		return err
	}

	v, err := s.svc.Ingest.Ingest(c.UserContext(), caller(c), up)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toReceiptOut(v))
}

func (s *Server) listReceipts(c *fiber.Ctx) error {
	q := receiptListQuery{Limit: models.DefaultPageLimit}
	if err := c.QueryParser(&q); err != nil {
		return badRequest("%v", err)
	}

	filter := models.ReceiptFilter{
		UserID:     q.UserID,
		MarketID:   q.MarketID,
		MarketName: q.MarketName,
		ItemName:   q.ItemName,
	}
	var err error
	if filter.DateFrom, err = parseOptionalTime(q.DateFrom); err != nil {
		return err
	}
	if filter.DateTo, err = parseOptionalTime(q.DateTo); err != nil {
		return err
	}

	page, err := s.svc.Receipts.List(c.UserContext(), caller(c), filter,
		models.Page{Skip: q.Skip, Limit: q.Limit}, models.ParseSort(q.OrderBy, q.OrderDir))
	if err != nil {
		return err
	}
	return c.JSON(toReceiptListOut(page))
}

func (s *Server) createReceipt(c *fiber.Ctx) error {
	var in receiptCreateIn
	if err := s.bind(c, &in); err != nil {
		return err
	}
	date, err := parseTime(in.Date)
	if err != nil {
		return err
	}

	v, err := s.svc.Receipts.CreateManual(c.UserContext(), caller(c), models.ReceiptInput{
		UserID:        in.UserID,
		MarketID:      in.MarketID,
		Date:          date,
		ReceiptNumber: in.ReceiptNumber,
		Address: models.Address{
			PostalCode:   in.PostalCode,
			City:         in.City,
			StreetName:   in.StreetName,
			StreetNumber: in.StreetNumber,
		},
		Items: toItemInputs(in.Items),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toReceiptOut(v))
}

func (s *Server) getReceipt(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := s.svc.Receipts.Get(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(toReceiptOut(v))
}

func (s *Server) updateReceipt(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in receiptUpdateIn
	if err := s.bind(c, &in); err != nil {
		return err
	}

	patch := models.ReceiptPatch{
		ReceiptNumber: in.ReceiptNumber,
		MarketID:      in.MarketID,
		PostalCode:    in.PostalCode,
		City:          in.City,
		StreetName:    in.StreetName,
		StreetNumber:  in.StreetNumber,
		Items:         toItemInputs(in.Items),
	}
	if in.Date != nil {
		d, err := parseTime(*in.Date)
		if err != nil {
			return err
		}
		patch.Date = &d
	}

	v, err := s.svc.Receipts.Update(c.UserContext(), caller(c), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(toReceiptOut(v))
}

func (s *Server) deleteReceipt(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.svc.Receipts.Delete(c.UserContext(), caller(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) receiptImage(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	img, err := s.svc.Receipts.Image(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}

	c.Attachment(img.Filename)
	c.Set(fiber.HeaderContentType, img.ContentType)
	return c.Send(img.Data)
}

func (s *Server) listMarkets(c *fiber.Ctx) error {
	q := pageQuery{Limit: services.DefaultMarketPageLimit}
	if err := c.QueryParser(&q); err != nil {
		return badRequest("%v", err)
	}

	list, err := s.svc.Markets.List(c.UserContext(), models.MarketFilter{Name: q.Name, TaxNumber: q.TaxNumber},
		models.Page{Skip: q.Skip, Limit: q.Limit})
	if err != nil {
		return err
	}

	out := make([]marketOut, 0, len(list))
	for _, m := range list {
		out = append(out, toMarketOut(m))
	}
	return c.JSON(out)
}

func (s *Server) createMarket(c *fiber.Ctx) error {
	var in marketIn
	if err := s.bind(c, &in); err != nil {
		return err
	}
	m, err := s.svc.Markets.Create(c.UserContext(), in.Name, in.TaxNumber)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toMarketOut(m))
}

func (s *Server) getMarket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, err := s.svc.Markets.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toMarketOut(m))
}

func (s *Server) updateMarket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in marketUpdateIn
	if err := s.bind(c, &in); err != nil {
		return err
	}
	m, err := s.svc.Markets.Update(c.UserContext(), id, in.Name, in.TaxNumber)
	if err != nil {
		return err
	}
	return c.JSON(toMarketOut(m))
}

func (s *Server) deleteMarket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.svc.Markets.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
