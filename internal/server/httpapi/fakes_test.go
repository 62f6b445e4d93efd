package httpapi

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

var (
	testUser  = models.Identity{ID: 2, Username: "alice", Roles: []models.RoleName{models.RoleUser}}
	testAdmin = models.Identity{ID: 1, Username: "admin", Roles: []models.RoleName{models.RoleAdmin}}
)

type fakeUsers struct {
	loginErr    error
	lastPatch   models.UserPatch
	lastReg     models.RegisterInput
	lastRefresh string
	uploaded    models.Upload
}

func (f *fakeUsers) Login(_ context.Context, username, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if username != "alice" || password != "pw" {
		return nil, common.ErrorUnauthorized
	}
	return &services.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeUsers) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	f.lastRefresh = token
	if token == "expired" {
		return nil, common.ErrRefreshTokenExpired
	}
	return &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeUsers) Identify(_ context.Context, token string) (models.Identity, error) {
	switch token {
	case userToken:
		return testUser, nil
	case adminToken:
		return testAdmin, nil
	default:
		return models.Identity{}, common.ErrInvalidToken
	}
}

func (f *fakeUsers) Register(_ context.Context, caller models.Identity, in models.RegisterInput) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	f.lastReg = in
	return &models.User{ID: 10, Username: in.Username, Roles: in.Roles}, nil
}

func (f *fakeUsers) RegisterPublic(_ context.Context, in models.RegisterInput) (*models.User, error) {
	f.lastReg = in
	if in.Username == "taken" {
		return nil, common.ErrConflict
	}
	return &models.User{ID: 11, Username: in.Username, Roles: []models.RoleName{models.RoleUser}}, nil
}

func (f *fakeUsers) List(_ context.Context, _ models.Identity, _ models.UserFilter, page models.Page) (*models.UserPage, error) {
	return &models.UserPage{Users: []*models.User{{ID: 2, Username: "alice"}}, Skip: page.Skip, Limit: page.Limit, Total: 1}, nil
}

func (f *fakeUsers) Me(_ context.Context, caller models.Identity) (*models.User, error) {
	return &models.User{ID: caller.ID, Username: caller.Username, Roles: caller.Roles}, nil
}

func (f *fakeUsers) Update(_ context.Context, _ models.Identity, id int64, patch models.UserPatch) (*models.User, error) {
	f.lastPatch = patch
	return &models.User{ID: id, Username: "alice"}, nil
}

func (f *fakeUsers) Delete(_ context.Context, caller models.Identity, _ int64) error {
	if !caller.IsAdmin() {
		return common.ErrForbidden
	}
	return nil
}

func (f *fakeUsers) SetProfilePicture(_ context.Context, caller models.Identity, up models.Upload) (*models.User, error) {
	f.uploaded = up
	key := "profile-pictures/x.png"
	return &models.User{ID: caller.ID, ProfilePicture: &key}, nil
}

type fakeIngest struct {
	err      error
	uploaded models.Upload
}

func (f *fakeIngest) Ingest(_ context.Context, caller models.Identity, up models.Upload) (*models.ReceiptView, error) {
	f.uploaded = up
	if f.err != nil {
		return nil, f.err
	}
	return sampleView(caller.ID), nil
}

type fakeReceipts struct {
	filter    models.ReceiptFilter
	page      models.Page
	sort      models.Sort
	patch     models.ReceiptPatch
	input     models.ReceiptInput
	getErr    error
	deletedID int64
}

func (f *fakeReceipts) List(_ context.Context, _ models.Identity, filter models.ReceiptFilter, page models.Page, sort models.Sort) (*models.ReceiptPage, error) {
	f.filter, f.page, f.sort = filter, page, sort
	return models.NewReceiptPage([]*models.ReceiptView{sampleView(2)}, page, 11), nil
}

func (f *fakeReceipts) Get(_ context.Context, _ models.Identity, id int64) (*models.ReceiptView, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v := sampleView(2)
	v.Receipt.ID = id
	return v, nil
}

func (f *fakeReceipts) CreateManual(_ context.Context, caller models.Identity, in models.ReceiptInput) (*models.ReceiptView, error) {
	f.input = in
	return sampleView(caller.ID), nil
}

func (f *fakeReceipts) Update(_ context.Context, _ models.Identity, id int64, patch models.ReceiptPatch) (*models.ReceiptView, error) {
	f.patch = patch
	v := sampleView(2)
	v.Receipt.ID = id
	return v, nil
}

func (f *fakeReceipts) Delete(_ context.Context, _ models.Identity, id int64) error {
	f.deletedID = id
	return nil
}

func (f *fakeReceipts) Image(_ context.Context, _ models.Identity, _ int64) (*models.ReceiptImage, error) {
	return &models.ReceiptImage{Data: []byte("jpegdata"), Filename: "result.jpg", ContentType: "image/jpeg"}, nil
}

type fakeMarkets struct {
	filter models.MarketFilter
	page   models.Page
}

func (f *fakeMarkets) Get(_ context.Context, id int64) (*models.Market, error) {
	if id == 404 {
		return nil, common.ErrorNotFound
	}
	return &models.Market{ID: id, Name: "Lidl", TaxNumber: "1"}, nil
}

func (f *fakeMarkets) List(_ context.Context, filter models.MarketFilter, page models.Page) ([]*models.Market, error) {
	f.filter, f.page = filter, page
	return []*models.Market{{ID: 1, Name: "Lidl", TaxNumber: "1"}}, nil
}

func (f *fakeMarkets) Create(_ context.Context, name, tax string) (*models.Market, error) {
	return &models.Market{ID: 5, Name: name, TaxNumber: tax}, nil
}

func (f *fakeMarkets) Update(_ context.Context, id int64, name, _ *string) (*models.Market, error) {
	return &models.Market{ID: id, Name: *name}, nil
}

func (f *fakeMarkets) Delete(_ context.Context, id int64) error {
	if id == 1 {
		return errors.Join(common.ErrConflict, errors.New("market is referenced"))
	}
	return nil
}

type fakeStats struct {
	scope  models.StatsScope
	limit  int
	bucket models.Bucket
	kind   models.SeriesKind
}

func (f *fakeStats) TotalSpent(_ context.Context, _ models.Identity, scope models.StatsScope) (float64, error) {
	f.scope = scope
	return 6000, nil
}

func (f *fakeStats) TotalReceipts(_ context.Context, _ models.Identity, scope models.StatsScope) (int64, error) {
	f.scope = scope
	return 3, nil
}

func (f *fakeStats) AverageReceiptValue(_ context.Context, _ models.Identity, scope models.StatsScope) (float64, error) {
	f.scope = scope
	return 2000, nil
}

func (f *fakeStats) TopItems(_ context.Context, _ models.Identity, _ models.StatsScope, limit int) ([]models.TopItem, error) {
	f.limit = limit
	return []models.TopItem{{Name: "Tej", Count: 4, TotalSpent: 1316}}, nil
}

func (f *fakeStats) WordCloud(_ context.Context, _ models.Identity, _ models.StatsScope, limit int) ([]models.WordCloudItem, error) {
	f.limit = limit
	return []models.WordCloudItem{{Text: "Tej", Value: 2, TotalSpent: 1316}}, nil
}

func (f *fakeStats) TimeSeries(_ context.Context, _ models.Identity, _ models.StatsScope, kind models.SeriesKind, bucket models.Bucket) ([]models.TimeSeriesPoint, error) {
	f.kind, f.bucket = kind, bucket
	if kind != models.SeriesReceipts && kind != models.SeriesAmounts {
		return nil, common.ErrInvalidInput
	}
	return []models.TimeSeriesPoint{{Date: sampleDate, Value: 3}}, nil
}

func (f *fakeStats) MarketTotalSpent(context.Context, models.Identity, models.StatsScope) ([]models.MarketValue, error) {
	return []models.MarketValue{{MarketName: "Lidl", Value: 6000}}, nil
}

func (f *fakeStats) MarketTotalReceipts(context.Context, models.Identity, models.StatsScope) ([]models.MarketValue, error) {
	return []models.MarketValue{{MarketName: "Lidl", Value: 3}}, nil
}

func (f *fakeStats) MarketAverageSpent(context.Context, models.Identity, models.StatsScope) ([]models.MarketValue, error) {
	return []models.MarketValue{{MarketName: "Lidl", Value: 2000}}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }
