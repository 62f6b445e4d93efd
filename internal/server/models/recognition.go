package models

import "time"

// RecognizedReceipt is what the vision model read from a receipt photo.
type RecognizedReceipt struct {
	Date          time.Time
	ReceiptNumber string
	Market        RecognizedMarket
	Address       Address
	Items         []RecognizedItem
}

type RecognizedMarket struct {
	Name      string
	TaxNumber string
}

type RecognizedItem struct {
	Name      string
	UnitPrice float64
	Quantity  float64
	Unit      string
}

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
