package models

import "time"

// Market is a retailer, unique by (Name, TaxNumber).
type Market struct {
	ID        int64
	Name      string
	TaxNumber string
}

// MarketFilter narrows market listings with case-insensitive substrings.
type MarketFilter struct {
	Name      string
	TaxNumber string
}

// Address is the branch address printed on a receipt.
type Address struct {
	PostalCode   string
	City         string
	StreetName   string
	StreetNumber string
}

type Receipt struct {
	ID               int64
	Date             time.Time
	ReceiptNumber    string
	MarketID         int64
	UserID           int64
	ImagePath        string
	OriginalFilename string
	Address          Address
}

type ReceiptItem struct {
	ID        int64
	ReceiptID int64
	Name      string
	UnitPrice float64
	Quantity  float64
	Unit      string
}

// Price is the line total.
func (i ReceiptItem) Price() float64 {
	return i.UnitPrice * i.Quantity
}

// ReceiptTotal sums the line totals of items.
func ReceiptTotal(items []*ReceiptItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price()
	}
	return total
}

// UserSummary is the owner as shown next to a receipt.
type UserSummary struct {
	ID       int64
	Username string
	FullName string
}

// ReceiptView is a receipt composed with its owner, market and items.
type ReceiptView struct {
	Receipt *Receipt
	User    UserSummary
	Market  *Market
	Items   []*ReceiptItem
	Total   float64
}

// NewReceiptView composes a view and computes its total.
func NewReceiptView(r *Receipt, u UserSummary, m *Market, items []*ReceiptItem) *ReceiptView {
	if items == nil {
		items = []*ReceiptItem{}
	}
	return &ReceiptView{
		Receipt: r,
		User:    u,
		Market:  m,
		Items:   items,
		Total:   ReceiptTotal(items),
	}
}

// ReceiptHeader is a receipt joined with its market and owner. Market or
// User is nil when the referenced row is missing.
type ReceiptHeader struct {
	Receipt *Receipt
	Market  *Market
	User    *UserSummary
}

// ItemInput is one line of a manual create or update. A nil ID means a new
// item.
type ItemInput struct {
	ID        *int64
	Name      string
	UnitPrice float64
	Quantity  float64
	Unit      string
}

// ReceiptInput is a manually entered receipt.
type ReceiptInput struct {
	UserID        *int64
	MarketID      int64
	Date          time.Time
	ReceiptNumber string
	Address       Address
	Items         []ItemInput
}

// ReceiptPatch carries optional receipt changes. Items, when non-nil,
// replaces the item set (update, insert, delete).
type ReceiptPatch struct {
	Date          *time.Time
	ReceiptNumber *string
	MarketID      *int64
	PostalCode    *string
	City          *string
	StreetName    *string
	StreetNumber  *string
	Items         []ItemInput
}

// ReceiptImage is a stored receipt photo ready for download.
type ReceiptImage struct {
	Data        []byte
	Filename    string
	ContentType string
}
