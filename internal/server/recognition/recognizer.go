// Package recognition turns a receipt photo into structured data with a
// vision-capable language model.
package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/go-playground/validator/v10"
)

// Recognizer extracts a receipt from an uploaded image. Every failure
// wraps common.ErrRecognition.
type Recognizer interface {
	Recognize(ctx context.Context, upload models.Upload) (*models.RecognizedReceipt, error)
}

const prompt = `Analyze this store receipt and extract all of its data.

Return a single JSON object with exactly these fields:
{
  "date": "purchase date and time as printed, ISO 8601 (YYYY-MM-DDTHH:MM:SS)",
  "receipt_number": "the receipt serial number or identifier",
  "market": {"name": "store name", "tax_number": "store tax number"},
  "address": {"postal_code": "", "city": "", "street_name": "", "street_number": ""},
  "items": [{"name": "item name as printed", "unit_price": 0, "quantity": 1, "unit": "unit as printed"}]
}

Rules:
1. Only report data that is actually visible on the image. Do not guess.
2. Prices are numbers without currency symbols.
3. If quantity is not printed, use 1.`

type payload struct {
	Date          string        `json:"date" validate:"required"`
	ReceiptNumber string        `json:"receipt_number"`
	Market        marketPayload `json:"market"`
	Address       struct {
		PostalCode   string `json:"postal_code"`
		City         string `json:"city"`
		StreetName   string `json:"street_name"`
		StreetNumber string `json:"street_number"`
	} `json:"address"`
	Items []itemPayload `json:"items" validate:"dive"`
}

type marketPayload struct {
	Name      string `json:"name" validate:"required"`
	TaxNumber string `json:"tax_number"`
}

type itemPayload struct {
	Name      string   `json:"name" validate:"required"`
	UnitPrice *float64 `json:"unit_price"`
	Price     *float64 `json:"price"`
	Quantity  *float64 `json:"quantity" validate:"omitnil,gt=0"`
	Unit      string   `json:"unit"`
}

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
	validate   = validator.New()
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006.01.02. 15:04:05",
	"2006.01.02. 15:04",
	"2006.01.02 15:04",
	"2006-01-02",
	"2006.01.02.",
	"2006.01.02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseResponse decodes the model's answer. Markdown fences and text
// around the JSON object are tolerated. Items without a quantity get 1;
// a bare "price" is taken as the unit price.
func ParseResponse(text string) (*models.RecognizedReceipt, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, errors.New("no JSON object in model response")
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid model response: %w", err)
	}

	date, err := parseDate(p.Date)
	if err != nil {
		return nil, err
	}

	rr := &models.RecognizedReceipt{
		Date:          date,
		ReceiptNumber: p.ReceiptNumber,
		Market:        models.RecognizedMarket{Name: p.Market.Name, TaxNumber: p.Market.TaxNumber},
		Address: models.Address{
			PostalCode:   p.Address.PostalCode,
			City:         p.Address.City,
			StreetName:   p.Address.StreetName,
			StreetNumber: p.Address.StreetNumber,
		},
		Items: make([]models.RecognizedItem, 0, len(p.Items)),
	}

	for i, it := range p.Items {
		item := models.RecognizedItem{Name: it.Name, Quantity: 1, Unit: it.Unit}
		switch {
		case it.UnitPrice != nil:
			item.UnitPrice = *it.UnitPrice
		case it.Price != nil:
			item.UnitPrice = *it.Price
		default:
			return nil, fmt.Errorf("item %d (%s) has no price", i, it.Name)
		}
		if it.Quantity != nil {
			item.Quantity = *it.Quantity
		}
		rr.Items = append(rr.Items, item)
	}

	return rr, nil
}
