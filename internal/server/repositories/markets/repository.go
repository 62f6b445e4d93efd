// Package markets persists retailers keyed by (name, tax_number).
package markets

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Market, error)
	// FindByNameAndTax matches both fields exactly.
	FindByNameAndTax(ctx context.Context, name, taxNumber string) (*models.Market, error)
	// GetOrCreate returns the market with the given pair, inserting it when
	// absent. The bool reports whether a row was inserted.
	GetOrCreate(ctx context.Context, name, taxNumber string) (*models.Market, bool, error)
	Create(ctx context.Context, m *models.Market) (*models.Market, error)
	Update(ctx context.Context, m *models.Market) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.MarketFilter, page models.Page) ([]*models.Market, error)
	// CountReceipts returns how many receipts reference the market.
	CountReceipts(ctx context.Context, id int64) (int64, error)
}
