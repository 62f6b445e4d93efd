package httpapi

import (
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) statsScope(c *fiber.Ctx) (models.StatsScope, statsQuery, error) {
	var q statsQuery
	if err := c.QueryParser(&q); err != nil {
		return models.StatsScope{}, q, badRequest("%v", err)
	}

	scope := models.StatsScope{UserID: q.UserID}
	var err error
	if scope.DateFrom, err = parseOptionalTime(q.DateFrom); err != nil {
		return scope, q, err
	}
	if scope.DateTo, err = parseOptionalTime(q.DateTo); err != nil {
		return scope, q, err
	}
	return scope, q, nil
}

func (s *Server) totalSpent(c *fiber.Ctx) error {
	scope, _, err := s.statsScope(c)
	if err != nil {
		return err
	}
	v, err := s.svc.Stats.TotalSpent(c.UserContext(), caller(c), scope)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total_spent": v})
}

func (s *Server) totalReceipts(c *fiber.Ctx) error {
	scope, _, err := s.statsScope(c)
	if err != nil {
		return err
	}
	v, err := s.svc.Stats.TotalReceipts(c.UserContext(), caller(c), scope)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total_receipts": v})
}

func (s *Server) averageReceiptValue(c *fiber.Ctx) error {
	scope, _, err := s.statsScope(c)
	if err != nil {
		return err
	}
	v, err := s.svc.Stats.AverageReceiptValue(c.UserContext(), caller(c), scope)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"average_receipt_value": v})
}

func (s *Server) topItems(c *fiber.Ctx) error {
	scope, q, err := s.statsScope(c)
	if err != nil {
		return err
	}
	items, err := s.svc.Stats.TopItems(c.UserContext(), caller(c), scope, q.Limit)
	if err != nil {
		return err
	}

	out := make([]topItemOut, 0, len(items))
	for _, it := range items {
		out = append(out, topItemOut{Name: it.Name, Count: it.Count, TotalSpent: it.TotalSpent})
	}
	return c.JSON(fiber.Map{"items": out})
}

func (s *Server) wordCloud(c *fiber.Ctx) error {
	scope, q, err := s.statsScope(c)
	if err != nil {
		return err
	}
	items, err := s.svc.Stats.WordCloud(c.UserContext(), caller(c), scope, q.Limit)
	if err != nil {
		return err
	}

	out := make([]wordCloudOut, 0, len(items))
	for _, it := range items {
		out = append(out, wordCloudOut{Text: it.Text, Value: it.Value, TotalSpent: it.TotalSpent})
	}
	return c.JSON(out)
}

func (s *Server) timeSeries(c *fiber.Ctx) error {
	scope, q, err := s.statsScope(c)
	if err != nil {
		return err
	}
	kind := models.SeriesKind(c.Params("kind"))
	points, err := s.svc.Stats.TimeSeries(c.UserContext(), caller(c), scope, kind, models.Bucket(q.Aggregation))
	if err != nil {
		return err
	}

	out := make([]pointOut, 0, len(points))
	for _, p := range points {
		out = append(out, pointOut{Date: p.Date.Format("2006-01-02"), Value: p.Value})
	}
	return c.JSON(out)
}

type marketStatFunc func(*fiber.Ctx, models.StatsScope) ([]models.MarketValue, error)

// marketRollup renders a per-market series as {"markets": [{market_name, <field>}]}.
func (s *Server) marketRollup(c *fiber.Ctx, field string, fn marketStatFunc) error {
	scope, _, err := s.statsScope(c)
	if err != nil {
		return err
	}
	rows, err := fn(c, scope)
	if err != nil {
		return err
	}

	out := make([]fiber.Map, 0, len(rows))
	for _, r := range rows {
		out = append(out, fiber.Map{"market_name": r.MarketName, field: r.Value})
	}
	return c.JSON(fiber.Map{"markets": out})
}

func (s *Server) marketTotalSpent(c *fiber.Ctx) error {
	return s.marketRollup(c, "total_spent", func(c *fiber.Ctx, scope models.StatsScope) ([]models.MarketValue, error) {
		return s.svc.Stats.MarketTotalSpent(c.UserContext(), caller(c), scope)
	})
}

func (s *Server) marketTotalReceipts(c *fiber.Ctx) error {
	return s.marketRollup(c, "total_receipts", func(c *fiber.Ctx, scope models.StatsScope) ([]models.MarketValue, error) {
		return s.svc.Stats.MarketTotalReceipts(c.UserContext(), caller(c), scope)
	})
}

func (s *Server) marketAverageSpent(c *fiber.Ctx) error {
	return s.marketRollup(c, "average_spent", func(c *fiber.Ctx, scope models.StatsScope) ([]models.MarketValue, error) {
		return s.svc.Stats.MarketAverageSpent(c.UserContext(), caller(c), scope)
	})
}
