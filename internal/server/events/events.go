// Package events announces ingested receipts to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

// ReceiptIngested is published after an ingestion commits.
type ReceiptIngested struct {
	ReceiptID  int64     `json:"receipt_id"`
	UserID     int64     `json:"user_id"`
	MarketID   int64     `json:"market_id"`
	MarketName string    `json:"market_name"`
	Items      int       `json:"items"`
	Total      float64   `json:"total"`
	Date       time.Time `json:"date"`
	IngestedAt time.Time `json:"ingested_at"`
}

func NewReceiptIngested(v *models.ReceiptView) ReceiptIngested {
	e := ReceiptIngested{
		ReceiptID:  v.Receipt.ID,
		UserID:     v.Receipt.UserID,
		MarketID:   v.Receipt.MarketID,
		Items:      len(v.Items),
		Total:      v.Total,
		Date:       v.Receipt.Date,
		IngestedAt: time.Now().UTC(),
	}
	if v.Market != nil {
		e.MarketName = v.Market.Name
	}
	return e
}

func (e ReceiptIngested) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	PublishReceiptIngested(ctx context.Context, e ReceiptIngested) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishReceiptIngested(context.Context, ReceiptIngested) error { return nil }
func (Nop) Close() error                                                  { return nil }
