package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/events"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/markets"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/receipts"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/stats"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	return cfg
}

func ptr[T any](v T) *T { return &v }

var (
	admin = models.Identity{ID: 1, Username: "admin", Roles: []models.RoleName{models.RoleAdmin}}
	alice = models.Identity{ID: 2, Username: "alice", Roles: []models.RoleName{models.RoleUser}}
	bob   = models.Identity{ID: 3, Username: "bob", Roles: []models.RoleName{models.RoleUser}}
)

// --- in-memory store ---

// store backs every fake repository. Writes inside a transaction are not
// rolled back; tests assert on the sqlmock Rollback instead.
type store struct {
	mu sync.Mutex

	users    map[int64]*models.User
	tokens   map[string]*models.RefreshToken
	roles    []models.RoleName
	markets  map[int64]*models.Market
	receipts map[int64]*models.Receipt
	items    map[int64]*models.ReceiptItem
	nextID   int64

	// failures injected by tests
	failMarketUpsert error
	failItemCreate   error
	failReceiptList  error
	failTokenCreate  error
	raceMarket       bool
	// whether the last receipt GetByID ran under a deadline
	receiptLookupDeadline bool
	// the token is redeemed by someone else right after Find returns it
	raceToken bool
}

func newStore() *store {
	return &store{
		users:    map[int64]*models.User{},
		tokens:   map[string]*models.RefreshToken{},
		markets:  map[int64]*models.Market{},
		receipts: map[int64]*models.Receipt{},
		items:    map[int64]*models.ReceiptItem{},
		nextID:   100,
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) addUser(id models.Identity) *models.User {
	u := &models.User{ID: id.ID, Username: id.Username, FullName: strings.ToUpper(id.Username), Roles: id.Roles}
	s.users[u.ID] = u
	return u
}

func (s *store) addMarket(name, tax string) *models.Market {
	m := &models.Market{ID: s.id(), Name: name, TaxNumber: tax}
	s.markets[m.ID] = m
	return m
}

func (s *store) addReceipt(owner, marketID int64, date time.Time, lines ...[2]float64) *models.Receipt {
	r := &models.Receipt{ID: s.id(), UserID: owner, MarketID: marketID, Date: date, ImagePath: "receipts/x.jpg", OriginalFilename: "x.jpg"}
	s.receipts[r.ID] = r
	for i, l := range lines {
		it := &models.ReceiptItem{ID: s.id(), ReceiptID: r.ID, Name: "item" + string(rune('A'+i)), UnitPrice: l[0], Quantity: l[1]}
		s.items[it.ID] = it
	}
	return r
}

type fakeRepoManager struct {
	s     *store
	stats *fakeStats
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return &fakeUsers{m.s} }
func (m *fakeRepoManager) Roles(dbx.DBTX) roles.Repository                 { return &fakeRoles{m.s} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return &fakeTokens{m.s} }
func (m *fakeRepoManager) Markets(dbx.DBTX) markets.Repository             { return &fakeMarkets{m.s} }
func (m *fakeRepoManager) Receipts(dbx.DBTX) receipts.Repository           { return &fakeReceipts{m.s} }
func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository                 { return &fakeItems{m.s} }
func (m *fakeRepoManager) Stats(dbx.DBTX) stats.Repository                 { return m.stats }

// --- users / roles / tokens ---

type fakeUsers struct{ s *store }

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, other := range f.s.users {
		if other.Username == u.Username || (u.Email != nil && other.Email != nil && *u.Email == *other.Email) {
			return nil, common.ErrConflict
		}
	}
	u.ID = f.s.id()
	f.s.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByLogin(_ context.Context, username string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) filtered(filter models.UserFilter) []*models.User {
	var out []*models.User
	for _, u := range f.s.users {
		if filter.Username == "" || strings.Contains(strings.ToLower(u.Username), strings.ToLower(filter.Username)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeUsers) List(_ context.Context, filter models.UserFilter, page models.Page) ([]*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return paginate(f.filtered(filter), page), nil
}

func (f *fakeUsers) Count(_ context.Context, filter models.UserFilter) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.filtered(filter))), nil
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	for _, other := range f.s.users {
		if other.ID != u.ID && u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return common.ErrConflict
		}
	}
	cp := *u
	f.s.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) SetRoles(_ context.Context, userID int64, roles []models.RoleName) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.Roles = roles
	return nil
}

func (f *fakeUsers) SetProfilePicture(_ context.Context, userID int64, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.ProfilePicture = &key
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.users, id)
	return nil
}

type fakeRoles struct{ s *store }

func (f *fakeRoles) Seed(_ context.Context, names []models.RoleName) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, n := range names {
		found := false
		for _, r := range f.s.roles {
			found = found || r == n
		}
		if !found {
			f.s.roles = append(f.s.roles, n)
		}
	}
	return nil
}

type fakeTokens struct{ s *store }

func (f *fakeTokens) Create(_ context.Context, userID int64, token string, validity time.Duration) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failTokenCreate != nil {
		return f.s.failTokenCreate
	}
	f.s.tokens[token] = &models.RefreshToken{ID: f.s.id(), UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if f.s.raceToken {
		delete(f.s.tokens, token)
	}
	return t, nil
}

func (f *fakeTokens) Delete(_ context.Context, token string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.tokens, token)
	return nil
}

// --- markets ---

type fakeMarkets struct{ s *store }

func (f *fakeMarkets) GetByID(_ context.Context, id int64) (*models.Market, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m, ok := f.s.markets[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMarkets) find(name, tax string) *models.Market {
	for _, m := range f.s.markets {
		if m.Name == name && m.TaxNumber == tax {
			return m
		}
	}
	return nil
}

func (f *fakeMarkets) FindByNameAndTax(_ context.Context, name, tax string) (*models.Market, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if m := f.find(name, tax); m != nil {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMarkets) GetOrCreate(_ context.Context, name, tax string) (*models.Market, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failMarketUpsert != nil {
		return nil, false, f.s.failMarketUpsert
	}
	if m := f.find(name, tax); m != nil {
		return m, false, nil
	}
	m := &models.Market{ID: f.s.id(), Name: name, TaxNumber: tax}
	f.s.markets[m.ID] = m
	return m, true, nil
}

func (f *fakeMarkets) Create(_ context.Context, m *models.Market) (*models.Market, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.find(m.Name, m.TaxNumber) != nil {
		return nil, common.ErrConflict
	}
	m.ID = f.s.id()
	f.s.markets[m.ID] = m
	return m, nil
}

func (f *fakeMarkets) Update(_ context.Context, m *models.Market) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if other := f.find(m.Name, m.TaxNumber); other != nil && other.ID != m.ID {
		return common.ErrConflict
	}
	if _, ok := f.s.markets[m.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *m
	f.s.markets[m.ID] = &cp
	return nil
}

func (f *fakeMarkets) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.markets, id)
	return nil
}

func (f *fakeMarkets) List(_ context.Context, filter models.MarketFilter, page models.Page) ([]*models.Market, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Market
	for _, m := range f.s.markets {
		if containsFold(m.Name, filter.Name) && containsFold(m.TaxNumber, filter.TaxNumber) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, page), nil
}

func (f *fakeMarkets) CountReceipts(_ context.Context, id int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, r := range f.s.receipts {
		if r.MarketID == id {
			n++
		}
	}
	return n, nil
}

// --- receipts ---

type fakeReceipts struct{ s *store }

func (f *fakeReceipts) Create(_ context.Context, r *models.Receipt) (*models.Receipt, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r.ID = f.s.id()
	cp := *r
	f.s.receipts[r.ID] = &cp
	return r, nil
}

func (f *fakeReceipts) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	_, f.s.receiptLookupDeadline = ctx.Deadline()
	r, ok := f.s.receipts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReceipts) header(r *models.Receipt) *models.ReceiptHeader {
	h := &models.ReceiptHeader{Receipt: r}
	if m, ok := f.s.markets[r.MarketID]; ok {
		h.Market = m
	}
	if u, ok := f.s.users[r.UserID]; ok {
		sum := u.Summary()
		h.User = &sum
	}
	return h
}

func (f *fakeReceipts) GetHeader(_ context.Context, id int64) (*models.ReceiptHeader, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.receipts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.header(r), nil
}

func (f *fakeReceipts) Update(_ context.Context, r *models.Receipt) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.receipts[r.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *r
	f.s.receipts[r.ID] = &cp
	return nil
}

func (f *fakeReceipts) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.receipts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.receipts, id)
	return nil
}

func (f *fakeReceipts) matches(r *models.Receipt, filter models.ReceiptFilter) bool {
	if filter.UserID != nil && r.UserID != *filter.UserID {
		return false
	}
	if filter.MarketID != nil && r.MarketID != *filter.MarketID {
		return false
	}
	if filter.MarketName != "" {
		m, ok := f.s.markets[r.MarketID]
		if !ok || !containsFold(m.Name, filter.MarketName) {
			return false
		}
	}
	if filter.ItemName != "" {
		found := false
		for _, it := range f.s.items {
			found = found || (it.ReceiptID == r.ID && containsFold(it.Name, filter.ItemName))
		}
		if !found {
			return false
		}
	}
	if filter.DateFrom != nil && r.Date.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && r.Date.After(*filter.DateTo) {
		return false
	}
	return true
}

func (f *fakeReceipts) filtered(filter models.ReceiptFilter) []*models.Receipt {
	var out []*models.Receipt
	for _, r := range f.s.receipts {
		if f.matches(r, filter) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeReceipts) Count(_ context.Context, filter models.ReceiptFilter) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.filtered(filter))), nil
}

func (f *fakeReceipts) List(_ context.Context, filter models.ReceiptFilter, page models.Page, so models.Sort) ([]*models.ReceiptHeader, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failReceiptList != nil {
		return nil, f.s.failReceiptList
	}
	out := f.filtered(filter)
	total := func(r *models.Receipt) float64 {
		var t float64
		for _, it := range f.s.items {
			if it.ReceiptID == r.ID {
				t += it.Price()
			}
		}
		return t
	}
	less := func(a, b *models.Receipt) bool {
		switch so.Field {
		case models.SortByTotal:
			if ta, tb := total(a), total(b); ta != tb {
				return ta < tb
			}
		case models.SortByReceiptNumber:
			if a.ReceiptNumber != b.ReceiptNumber {
				return a.ReceiptNumber < b.ReceiptNumber
			}
		case models.SortByID:
		default:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(out, func(i, j int) bool {
		if so.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	var headers []*models.ReceiptHeader
	for _, r := range paginate(out, page) {
		headers = append(headers, f.header(r))
	}
	return headers, nil
}

func (f *fakeReceipts) CountByUser(_ context.Context, userID int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return int64(len(f.filtered(models.ReceiptFilter{UserID: &userID}))), nil
}

// --- items ---

type fakeItems struct{ s *store }

func (f *fakeItems) Create(_ context.Context, it *models.ReceiptItem) (*models.ReceiptItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failItemCreate != nil {
		return nil, f.s.failItemCreate
	}
	it.ID = f.s.id()
	cp := *it
	f.s.items[it.ID] = &cp
	return it, nil
}

func (f *fakeItems) Update(_ context.Context, it *models.ReceiptItem) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	old, ok := f.s.items[it.ID]
	if !ok || old.ReceiptID != it.ReceiptID {
		return common.ErrorNotFound
	}
	cp := *it
	f.s.items[it.ID] = &cp
	return nil
}

func (f *fakeItems) Delete(_ context.Context, receiptID, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	old, ok := f.s.items[id]
	if !ok || old.ReceiptID != receiptID {
		return common.ErrorNotFound
	}
	delete(f.s.items, id)
	return nil
}

func (f *fakeItems) DeleteByReceipt(_ context.Context, receiptID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, it := range f.s.items {
		if it.ReceiptID == receiptID {
			delete(f.s.items, id)
		}
	}
	return nil
}

func (f *fakeItems) byReceipt(receiptID int64) []*models.ReceiptItem {
	out := []*models.ReceiptItem{}
	for _, it := range f.s.items {
		if it.ReceiptID == receiptID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeItems) ListByReceipt(_ context.Context, receiptID int64) ([]*models.ReceiptItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.byReceipt(receiptID), nil
}

func (f *fakeItems) ListByReceiptIDs(_ context.Context, ids []int64) (map[int64][]*models.ReceiptItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := map[int64][]*models.ReceiptItem{}
	for _, id := range ids {
		if list := f.byReceipt(id); len(list) > 0 {
			out[id] = list
		}
	}
	return out, nil
}

// --- stats ---

// fakeStats computes the summary from the in-memory store; the other
// aggregates return canned rows.
type fakeStats struct {
	s        *store
	scopes   []models.StatsScope
	limits   []int
	series   []models.TimeSeriesPoint
	rollup   []models.MarketValue
	deadline bool
	err      error
}

func (f *fakeStats) record(ctx context.Context, scope models.StatsScope) error {
	f.scopes = append(f.scopes, scope)
	_, f.deadline = ctx.Deadline()
	return f.err
}

func (f *fakeStats) Summary(ctx context.Context, scope models.StatsScope) (models.Summary, error) {
	if err := f.record(ctx, scope); err != nil {
		return models.Summary{}, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	inScope := (&fakeReceipts{f.s}).matches
	filter := models.ReceiptFilter{UserID: scope.UserID, DateFrom: scope.DateFrom, DateTo: scope.DateTo}

	var sum models.Summary
	for _, r := range f.s.receipts {
		if !inScope(r, filter) {
			continue
		}
		sum.TotalReceipts++
		for _, it := range f.s.items {
			if it.ReceiptID == r.ID {
				sum.TotalSpent += it.UnitPrice * it.Quantity
			}
		}
	}
	return sum, nil
}

func (f *fakeStats) TopItems(ctx context.Context, scope models.StatsScope, limit int) ([]models.TopItem, error) {
	f.limits = append(f.limits, limit)
	return []models.TopItem{}, f.record(ctx, scope)
}

func (f *fakeStats) WordCloud(ctx context.Context, scope models.StatsScope, limit int) ([]models.WordCloudItem, error) {
	f.limits = append(f.limits, limit)
	return []models.WordCloudItem{}, f.record(ctx, scope)
}

func (f *fakeStats) TimeSeries(ctx context.Context, scope models.StatsScope, _ models.SeriesKind, _ models.Bucket) ([]models.TimeSeriesPoint, error) {
	return f.series, f.record(ctx, scope)
}

func (f *fakeStats) MarketTotalSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return f.rollup, f.record(ctx, scope)
}

func (f *fakeStats) MarketTotalReceipts(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return f.rollup, f.record(ctx, scope)
}

func (f *fakeStats) MarketAverageSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return f.rollup, f.record(ctx, scope)
}

// --- collaborators ---

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deleted   []string
	// set when a Delete ran under a context that can be cancelled
	cancellableDelete bool
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return b, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellableDelete = f.cancellableDelete || ctx.Done() != nil
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

type fakeRecognizer struct {
	out *models.RecognizedReceipt
	err error
	// block waits for ctx cancellation before returning
	block bool
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ models.Upload) (*models.RecognizedReceipt, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

type fakePublisher struct {
	published []events.ReceiptIngested
	err       error
}

func (f *fakePublisher) PublishReceiptIngested(_ context.Context, e events.ReceiptIngested) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, e)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// --- misc ---

func paginate[T any](in []T, page models.Page) []T {
	if page.Skip >= len(in) {
		return []T{}
	}
	end := page.Skip + page.Limit
	if end > len(in) {
		end = len(in)
	}
	return in[page.Skip:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// --- harness ---

type harness struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *store
	stats *fakeStats
	blobs *fakeBlobs
	cfg   *config.Config
	rm    *fakeRepoManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock := newSQLMockDB(t)
	h := &harness{
		db:    db,
		mock:  mock,
		store: newStore(),
		blobs: newFakeBlobs(),
		cfg:   testConfig(),
	}
	h.stats = &fakeStats{s: h.store}
	h.rm = &fakeRepoManager{s: h.store, stats: h.stats}
	h.store.addUser(admin)
	h.store.addUser(alice)
	h.store.addUser(bob)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
	})
	return h
}
