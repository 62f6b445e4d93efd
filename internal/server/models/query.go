package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageLimit   = 10
	MaxPageLimit       = 100
	MaxMarketPageLimit = 1000
)

// Page is offset pagination.
type Page struct {
	Skip  int
	Limit int
}

// Validate checks 0 <= Skip and 1 <= Limit <= maxLimit.
func (p Page) Validate(maxLimit int) error {
	if p.Skip < 0 {
		return fmt.Errorf("skip must be >= 0, got %d", p.Skip)
	}
	if p.Limit < 1 || p.Limit > maxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", maxLimit, p.Limit)
	}
	return nil
}

// ReceiptFilter holds the optional, AND-combined receipt filters.
// DateFrom and DateTo are inclusive.
type ReceiptFilter struct {
	UserID     *int64
	MarketID   *int64
	MarketName string
	ItemName   string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// SortField names a receipt ordering.
type SortField string

const (
	SortByDate          SortField = "date"
	SortByReceiptNumber SortField = "receipt_number"
	SortByID            SortField = "id"
	SortByTotal         SortField = "total"
)

// ParseSortField falls back to SortByDate for unknown input.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByDate, SortByReceiptNumber, SortByID, SortByTotal:
		return f
	default:
		return SortByDate
	}
}

type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortByDate, Desc: true}

// ParseSort builds a Sort from raw parameters. Direction "asc" is ascending,
// anything else descending.
func ParseSort(field, dir string) Sort {
	return Sort{
		Field: ParseSortField(field),
		Desc:  !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}

// ReceiptPage is one page of a receipt listing.
type ReceiptPage struct {
	Receipts    []*ReceiptView
	Skip        int
	Limit       int
	Total       int64
	HasNext     bool
	HasPrevious bool
}

// NewReceiptPage fills the navigation flags from page and total.
func NewReceiptPage(views []*ReceiptView, page Page, total int64) *ReceiptPage {
	if views == nil {
		views = []*ReceiptView{}
	}
	return &ReceiptPage{
		Receipts:    views,
		Skip:        page.Skip,
		Limit:       page.Limit,
		Total:       total,
		HasNext:     int64(page.Skip+page.Limit) < total,
		HasPrevious: page.Skip > 0,
	}
}
