// Package items persists receipt line items.
package items

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.ReceiptItem) (*models.ReceiptItem, error)
	// Update changes an item only if it belongs to item.ReceiptID.
	Update(ctx context.Context, item *models.ReceiptItem) error
	Delete(ctx context.Context, receiptID, id int64) error
	DeleteByReceipt(ctx context.Context, receiptID int64) error
	ListByReceipt(ctx context.Context, receiptID int64) ([]*models.ReceiptItem, error)
	// ListByReceiptIDs loads the items of several receipts in one query,
	// keyed by receipt id.
	ListByReceiptIDs(ctx context.Context, receiptIDs []int64) (map[int64][]*models.ReceiptItem, error)
}
