package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
)

// --- requests ---

type loginIn struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type refreshIn struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type registerIn struct {
	Username string   `json:"username" validate:"required,max=64"`
	Email    *string  `json:"email" validate:"omitempty,email"`
	FullName string   `json:"fullname"`
	Password string   `json:"password" validate:"required"`
	Disabled bool     `json:"disabled"`
	Roles    []string `json:"roles" validate:"dive,oneof=admin user"`
}

func (in registerIn) toModel() models.RegisterInput {
	return models.RegisterInput{
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Password: in.Password,
		Disabled: in.Disabled,
		Roles:    toRoles(in.Roles),
	}
}

type userUpdateIn struct {
	Email    *string  `json:"email" validate:"omitempty,email"`
	FullName *string  `json:"fullname"`
	Password *string  `json:"password"`
	Disabled *bool    `json:"disabled"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=admin user"`
}

func (in userUpdateIn) toModel() models.UserPatch {
	return models.UserPatch{
		Email:    in.Email,
		FullName: in.FullName,
		Password: in.Password,
		Disabled: in.Disabled,
		Roles:    toRoles(in.Roles),
	}
}

type itemIn struct {
	ID        *int64  `json:"id"`
	Name      string  `json:"name" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Unit      string  `json:"unit"`
}

type receiptCreateIn struct {
	UserID        *int64   `json:"user_id"`
	MarketID      int64    `json:"market_id" validate:"required,gt=0"`
	Date          string   `json:"date" validate:"required"`
	ReceiptNumber string   `json:"receipt_number"`
	PostalCode    string   `json:"postal_code"`
	City          string   `json:"city"`
	StreetName    string   `json:"street_name"`
	StreetNumber  string   `json:"street_number"`
	Items         []itemIn `json:"items" validate:"dive"`
}

type receiptUpdateIn struct {
	Date          *string  `json:"date"`
	ReceiptNumber *string  `json:"receipt_number"`
	MarketID      *int64   `json:"market_id" validate:"omitnil,gt=0"`
	PostalCode    *string  `json:"postal_code"`
	City          *string  `json:"city"`
	StreetName    *string  `json:"street_name"`
	StreetNumber  *string  `json:"street_number"`
	Items         []itemIn `json:"items" validate:"omitempty,dive"`
}

type marketIn struct {
	Name      string `json:"name" validate:"required"`
	TaxNumber string `json:"tax_number"`
}

type marketUpdateIn struct {
	Name      *string `json:"name"`
	TaxNumber *string `json:"tax_number"`
}

// receiptListQuery carries the filter, page and sort of GET /receipt/.
type receiptListQuery struct {
	Skip       int    `query:"skip"`
	Limit      int    `query:"limit"`
	UserID     *int64 `query:"user_id"`
	MarketID   *int64 `query:"market_id"`
	MarketName string `query:"market_name"`
	ItemName   string `query:"item_name"`
	DateFrom   string `query:"date_from"`
	DateTo     string `query:"date_to"`
	OrderBy    string `query:"order_by"`
	OrderDir   string `query:"order_dir"`
}

type statsQuery struct {
	UserID      *int64 `query:"user_id"`
	DateFrom    string `query:"date_from"`
	DateTo      string `query:"date_to"`
	Limit       int    `query:"limit"`
	Aggregation string `query:"aggregation"`
}

type pageQuery struct {
	Skip      int    `query:"skip"`
	Limit     int    `query:"limit"`
	Username  string `query:"username"`
	Name      string `query:"name"`
	TaxNumber string `query:"tax_number"`
}

// --- responses ---

type tokenOut struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func toTokenOut(p *services.TokenPair) tokenOut {
	return tokenOut{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: "bearer"}
}

type userOut struct {
	ID             int64    `json:"id"`
	Username       string   `json:"username"`
	Email          *string  `json:"email"`
	FullName       string   `json:"fullname"`
	ProfilePicture *string  `json:"profile_picture"`
	Disabled       bool     `json:"disabled"`
	Roles          []string `json:"roles"`
}

func toUserOut(u *models.User) userOut {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	return userOut{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		Disabled:       u.Disabled,
		Roles:          roles,
	}
}

type userListOut struct {
	Users    []userOut `json:"users"`
	Skip     int       `json:"skip"`
	PageSize int       `json:"page_size"`
	Total    int64     `json:"total"`
}

type userSummaryOut struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

type marketOut struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
}

func toMarketOut(m *models.Market) marketOut {
	return marketOut{ID: m.ID, Name: m.Name, TaxNumber: m.TaxNumber}
}

type itemOut struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Price     float64 `json:"price"`
}

type receiptOut struct {
	ID               int64          `json:"id"`
	Date             time.Time      `json:"date"`
	ReceiptNumber    string         `json:"receipt_number"`
	ImagePath        string         `json:"image_path"`
	OriginalFilename string         `json:"original_filename"`
	User             userSummaryOut `json:"user"`
	Market           marketOut      `json:"market"`
	PostalCode       string         `json:"postal_code"`
	City             string         `json:"city"`
	StreetName       string         `json:"street_name"`
	StreetNumber     string         `json:"street_number"`
	Items            []itemOut      `json:"items"`
	Total            float64        `json:"total"`
}

func toReceiptOut(v *models.ReceiptView) receiptOut {
	r := v.Receipt
	items := make([]itemOut, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, itemOut{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			Price:     it.Price(),
		})
	}
	return receiptOut{
		ID:               r.ID,
		Date:             r.Date,
		ReceiptNumber:    r.ReceiptNumber,
		ImagePath:        r.ImagePath,
		OriginalFilename: r.OriginalFilename,
		User:             userSummaryOut{ID: v.User.ID, Username: v.User.Username, FullName: v.User.FullName},
		Market:           toMarketOut(v.Market),
		PostalCode:       r.Address.PostalCode,
		City:             r.Address.City,
		StreetName:       r.Address.StreetName,
		StreetNumber:     r.Address.StreetNumber,
		Items:            items,
		Total:            v.Total,
	}
}

type receiptListOut struct {
	Receipts    []receiptOut `json:"receipts"`
	Skip        int          `json:"skip"`
	Limit       int          `json:"limit"`
	Total       int64        `json:"total"`
	HasNext     bool         `json:"has_next"`
	HasPrevious bool         `json:"has_previous"`
}

func toReceiptListOut(p *models.ReceiptPage) receiptListOut {
	out := receiptListOut{
		Receipts:    make([]receiptOut, 0, len(p.Receipts)),
		Skip:        p.Skip,
		Limit:       p.Limit,
		Total:       p.Total,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
	for _, v := range p.Receipts {
		out.Receipts = append(out.Receipts, toReceiptOut(v))
	}
	return out
}

type topItemOut struct {
	Name       string  `json:"name"`
	Count      float64 `json:"count"`
	TotalSpent float64 `json:"total_spent"`
}

type wordCloudOut struct {
	Text       string  `json:"text"`
	Value      int64   `json:"value"`
	TotalSpent float64 `json:"total_spent"`
}

type pointOut struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// --- helpers ---

func toRoles(in []string) []models.RoleName {
	if in == nil {
		return nil
	}
	out := make([]models.RoleName, 0, len(in))
	for _, r := range in {
		out = append(out, models.RoleName(strings.ToLower(r)))
	}
	return out
}

func toItemInputs(in []itemIn) []models.ItemInput {
	if in == nil {
		return nil
	}
	out := make([]models.ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, models.ItemInput{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
		})
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest("invalid date %q", s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
