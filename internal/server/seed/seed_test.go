package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/markets"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/receipts"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users.Repository
	ids []int64
}

func (f *fakeUsers) List(_ context.Context, _ models.UserFilter, page models.Page) ([]*models.User, error) {
	var out []*models.User
	for i := page.Skip; i < len(f.ids) && len(out) < page.Limit; i++ {
		out = append(out, &models.User{ID: f.ids[i]})
	}
	return out, nil
}

type fakeMarkets struct {
	markets.Repository
	created []*models.Market
}

func (f *fakeMarkets) GetOrCreate(_ context.Context, name, tax string) (*models.Market, bool, error) {
	m := &models.Market{ID: int64(len(f.created) + 1), Name: name, TaxNumber: tax}
	f.created = append(f.created, m)
	return m, true, nil
}

type fakeReceipts struct {
	receipts.Repository
	created []*models.Receipt
	failAt  int
}

func (f *fakeReceipts) Create(_ context.Context, r *models.Receipt) (*models.Receipt, error) {
	if f.failAt > 0 && len(f.created)+1 == f.failAt {
		return nil, errors.New("db error: disk full")
	}
	r.ID = int64(len(f.created) + 1)
	f.created = append(f.created, r)
	return r, nil
}

type fakeItems struct {
	items.Repository
	created []*models.ReceiptItem
}

func (f *fakeItems) Create(_ context.Context, it *models.ReceiptItem) (*models.ReceiptItem, error) {
	f.created = append(f.created, it)
	return it, nil
}

type fakeManager struct {
	repomanager.RepositoryManager
	users    *fakeUsers
	markets  *fakeMarkets
	receipts *fakeReceipts
	items    *fakeItems
}

func (m *fakeManager) Users(dbx.DBTX) users.Repository       { return m.users }
func (m *fakeManager) Markets(dbx.DBTX) markets.Repository   { return m.markets }
func (m *fakeManager) Receipts(dbx.DBTX) receipts.Repository { return m.receipts }
func (m *fakeManager) Items(dbx.DBTX) items.Repository       { return m.items }

func newFakeManager(userIDs ...int64) *fakeManager {
	return &fakeManager{
		users:    &fakeUsers{ids: userIDs},
		markets:  &fakeMarkets{},
		receipts: &fakeReceipts{},
		items:    &fakeItems{},
	}
}

func newGenerator(t *testing.T, m *fakeManager) (*Generator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewGenerator(db, m, logging.Nop{}), mock
}

func TestRun_WritesBatchesThroughRepositories(t *testing.T) {
	m := newFakeManager(2, 3)
	g, mock := newGenerator(t, m)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// markets, then 250 receipts in batches of 100, 100 and 50
	for range 4 {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	res, err := g.Run(context.Background(), Options{Receipts: 250, BatchSize: 100, Seed: 7, Now: now})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, len(marketNames), res.Markets)
	assert.Equal(t, 250, res.Receipts)
	assert.Equal(t, len(m.items.created), res.Items)
	assert.Len(t, m.receipts.created, 250)

	names := map[string]bool{}
	for _, mk := range m.markets.created {
		names[mk.Name] = true
		assert.Regexp(t, `^\d{8}-\d-\d{2}$`, mk.TaxNumber)
	}
	assert.Len(t, names, len(marketNames))

	perReceipt := map[int64]int{}
	for _, it := range m.items.created {
		perReceipt[it.ReceiptID]++
		assert.GreaterOrEqual(t, it.UnitPrice, 100.0)
		assert.LessOrEqual(t, it.UnitPrice, 5000.0)
		assert.Greater(t, it.Quantity, 0.0)
	}
	for _, r := range m.receipts.created {
		assert.Contains(t, []int64{2, 3}, r.UserID)
		assert.False(t, r.Date.After(now))
		assert.False(t, r.Date.Before(now.AddDate(0, 0, -historyDays)))
		assert.NotEmpty(t, r.Address.City)
		n := perReceipt[r.ID]
		assert.True(t, n >= 1 && n <= maxItemsPerReceipt, "receipt %d has %d items", r.ID, n)
	}
}

func TestRun_SameSeedSameData(t *testing.T) {
	run := func() *fakeManager {
		m := newFakeManager(5)
		g, mock := newGenerator(t, m)
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectCommit()
		_, err := g.Run(context.Background(), Options{Receipts: 20, Seed: 42, Now: time.Unix(1700000000, 0)})
		require.NoError(t, err)
		return m
	}

	a, b := run(), run()
	assert.Equal(t, a.markets.created, b.markets.created)
	assert.Equal(t, a.receipts.created, b.receipts.created)
	assert.Equal(t, a.items.created, b.items.created)
}

func TestRun_DefaultReceiptCount(t *testing.T) {
	m := newFakeManager(1)
	g, mock := newGenerator(t, m)
	for range 1 + DefaultMaxReceipts/DefaultBatchSize {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	res, err := g.Run(context.Background(), Options{Seed: 1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Receipts, DefaultMinReceipts)
	assert.LessOrEqual(t, res.Receipts, DefaultMaxReceipts)
}

func TestRun_NoUsers(t *testing.T) {
	g, mock := newGenerator(t, newFakeManager())

	_, err := g.Run(context.Background(), Options{Receipts: 1})
	assert.ErrorIs(t, err, ErrNoUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_FailedBatchRollsBack(t *testing.T) {
	m := newFakeManager(1)
	m.receipts.failAt = 15
	g, mock := newGenerator(t, m)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	res, err := g.Run(context.Background(), Options{Receipts: 30, BatchSize: 10, Seed: 3})
	require.ErrorContains(t, err, "receipt 15")
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 10, res.Receipts)
}

func TestUserIDs_Paginates(t *testing.T) {
	ids := make([]int64, userPageSize+3)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	g, _ := newGenerator(t, newFakeManager(ids...))

	got, err := g.userIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}
