package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lidlReceipt() *models.RecognizedReceipt {
	return &models.RecognizedReceipt{
		Date:          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		ReceiptNumber: "0042/00117",
		Market:        models.RecognizedMarket{Name: "Lidl", TaxNumber: "12345678-2-44"},
		Address:       models.Address{PostalCode: "1111", City: "Budapest", StreetName: "Fő utca", StreetNumber: "1"},
		Items: []models.RecognizedItem{
			{Name: "Tej 2,8%", UnitPrice: 329, Quantity: 2, Unit: "db"},
			{Name: "Kenyér", UnitPrice: 599, Quantity: 1, Unit: "db"},
			{Name: "Alma", UnitPrice: 499, Quantity: 1.5, Unit: "kg"},
		},
	}
}

func jpegUpload() models.Upload {
	return models.Upload{Filename: "Lidl.JPG", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

func newIngest(h *harness, r *fakeRecognizer, p *fakePublisher) *IngestService {
	return NewIngestService(h.db, h.rm, h.blobs, r, p, h.cfg, logging.Nop{})
}

func TestIngest_StoresRecognizedReceipt(t *testing.T) {
	h := newHarness(t)
	pub := &fakePublisher{}
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, pub)

	expectTx(h.mock, true)
	view, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.NoError(t, err)

	assert.Equal(t, "Lidl", view.Market.Name)
	assert.Equal(t, "12345678-2-44", view.Market.TaxNumber)
	assert.Equal(t, alice.ID, view.Receipt.UserID)
	assert.Equal(t, alice.ID, view.User.ID)
	assert.Equal(t, "Lidl.JPG", view.Receipt.OriginalFilename)
	assert.True(t, strings.HasPrefix(view.Receipt.ImagePath, "receipts/"))
	assert.True(t, strings.HasSuffix(view.Receipt.ImagePath, ".jpg"))
	assert.Equal(t, "Budapest", view.Receipt.Address.City)
	require.Len(t, view.Items, 3)
	assert.InDelta(t, 329*2+599+499*1.5, view.Total, 1e-9)

	stored, ok := h.blobs.objects[view.Receipt.ImagePath]
	require.True(t, ok)
	assert.Equal(t, jpegUpload().Data, stored)

	require.Len(t, pub.published, 1)
	assert.Equal(t, view.Receipt.ID, pub.published[0].ReceiptID)
}

func TestIngest_ReusesExistingMarket(t *testing.T) {
	h := newHarness(t)
	existing := h.store.addMarket("Lidl", "12345678-2-44")
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, &fakePublisher{})

	expectTx(h.mock, true)
	expectTx(h.mock, true)
	first, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), bob, jpegUpload())
	require.NoError(t, err)

	assert.Equal(t, existing.ID, first.Market.ID)
	assert.Equal(t, existing.ID, second.Market.ID)
	assert.Len(t, h.store.markets, 1)
	assert.NotEqual(t, first.Receipt.ImagePath, second.Receipt.ImagePath)
}

func TestIngest_MarketIdentityIsNameAndTaxNumber(t *testing.T) {
	h := newHarness(t)
	rec := &fakeRecognizer{out: &models.RecognizedReceipt{
		Date:   time.Date(2024, 5, 2, 18, 30, 0, 0, time.UTC),
		Market: models.RecognizedMarket{Name: "Lidl", TaxNumber: "12345678-1-11"},
		Items: []models.RecognizedItem{
			{Name: "Tej", UnitPrice: 500, Quantity: 2},
			{Name: "Kenyér", UnitPrice: 800, Quantity: 1},
		},
	}}
	svc := newIngest(h, rec, &fakePublisher{})
	ctx := context.Background()

	expectTx(h.mock, true)
	first, err := svc.Ingest(ctx, alice, jpegUpload())
	require.NoError(t, err)

	assert.Equal(t, 1800.0, first.Total)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Lidl", first.Market.Name)
	assert.Equal(t, "12345678-1-11", first.Market.TaxNumber)
	require.Len(t, h.store.markets, 1)
	require.Len(t, h.store.receipts, 1)
	assert.Equal(t, first.Market.ID, h.store.receipts[first.Receipt.ID].MarketID)

	// same name, different tax number: a distinct market
	rec.out = &models.RecognizedReceipt{
		Date:   time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC),
		Market: models.RecognizedMarket{Name: "Lidl", TaxNumber: "87654321-2-22"},
		Items:  []models.RecognizedItem{{Name: "Tej", UnitPrice: 500, Quantity: 1}},
	}
	expectTx(h.mock, true)
	second, err := svc.Ingest(ctx, alice, jpegUpload())
	require.NoError(t, err)

	assert.NotEqual(t, first.Market.ID, second.Market.ID)
	assert.Equal(t, "87654321-2-22", second.Market.TaxNumber)
	assert.Len(t, h.store.markets, 2)
	assert.Len(t, h.store.receipts, 2)
	assert.Equal(t, 500.0, second.Total)
}

func TestIngest_RejectsNonImage(t *testing.T) {
	h := newHarness(t)
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, &fakePublisher{})

	tests := []struct {
		name   string
		upload models.Upload
	}{
		{"pdf", models.Upload{Filename: "r.pdf", ContentType: "application/pdf", Data: []byte("x")}},
		{"no filename", models.Upload{ContentType: "image/png", Data: []byte("x")}},
		{"empty", models.Upload{Filename: "r.png", ContentType: "image/png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), alice, tt.upload)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
	assert.Empty(t, h.blobs.objects)
}

func TestIngest_StorageFailure(t *testing.T) {
	h := newHarness(t)
	h.blobs.putErr = errors.New("bucket gone")
	pub := &fakePublisher{}
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, pub)

	_, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Empty(t, h.store.receipts)
	assert.Empty(t, pub.published)
}

func TestIngest_RecognitionFailureRemovesImage(t *testing.T) {
	h := newHarness(t)
	svc := newIngest(h, &fakeRecognizer{err: errors.New("model said no")}, &fakePublisher{})

	_, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.ErrorIs(t, err, common.ErrRecognition)

	assert.Empty(t, h.blobs.objects)
	require.Len(t, h.blobs.deleted, 1)
	assert.True(t, strings.HasPrefix(h.blobs.deleted[0], "receipts/"))
	assert.Empty(t, h.store.receipts)
	assert.Empty(t, h.store.markets)
}

func TestIngest_RecognitionTimeout(t *testing.T) {
	h := newHarness(t)
	h.cfg.RecognitionTimeout = 20 * time.Millisecond
	svc := newIngest(h, &fakeRecognizer{block: true}, &fakePublisher{})

	_, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.ErrorIs(t, err, common.ErrRecognition)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, h.blobs.objects)
}

func TestIngest_PersistFailureRollsBackAndRemovesImage(t *testing.T) {
	h := newHarness(t)
	h.store.failItemCreate = errors.New("db error: disk full")
	pub := &fakePublisher{}
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, pub)

	expectTx(h.mock, false)
	_, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Empty(t, h.blobs.objects)
	assert.Len(t, h.blobs.deleted, 1)
	assert.Empty(t, pub.published)
}

func TestIngest_UnknownOwner(t *testing.T) {
	h := newHarness(t)
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, &fakePublisher{})
	ghost := models.Identity{ID: 999, Username: "ghost", Roles: []models.RoleName{models.RoleUser}}

	expectTx(h.mock, false)
	_, err := svc.Ingest(context.Background(), ghost, jpegUpload())
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, h.blobs.objects)
}

func TestIngest_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	svc := newIngest(h, &fakeRecognizer{out: lidlReceipt()}, &fakePublisher{err: errors.New("broker down")})

	expectTx(h.mock, true)
	view, err := svc.Ingest(context.Background(), alice, jpegUpload())
	require.NoError(t, err)
	assert.NotZero(t, view.Receipt.ID)
	assert.Len(t, h.blobs.objects, 1)
}

func TestIngest_CleanupIgnoresDeleteError(t *testing.T) {
	h := newHarness(t)
	h.blobs.deleteErr = errors.New("nope")
	svc := newIngest(h, &fakeRecognizer{err: errors.New("unreadable")}, &fakePublisher{})

	_, err := svc.Ingest(context.Background(), alice, jpegUpload())
	assert.ErrorIs(t, err, common.ErrRecognition)
	assert.Len(t, h.blobs.deleted, 1)
}
