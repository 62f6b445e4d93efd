// Package receipts persists receipts and implements the filtered,
// paginated receipt listing.
package receipts

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.Receipt) (*models.Receipt, error)
	GetByID(ctx context.Context, id int64) (*models.Receipt, error)
	// GetHeader returns the receipt joined with its market and owner.
	GetHeader(ctx context.Context, id int64) (*models.ReceiptHeader, error)
	Update(ctx context.Context, r *models.Receipt) error
	Delete(ctx context.Context, id int64) error

	// Count and List apply the same predicates to the same filter.
	Count(ctx context.Context, filter models.ReceiptFilter) (int64, error)
	List(ctx context.Context, filter models.ReceiptFilter, page models.Page, sort models.Sort) ([]*models.ReceiptHeader, error)

	// CountByUser returns how many receipts userID owns.
	CountByUser(ctx context.Context, userID int64) (int64, error)
}
