package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/events"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/recognition"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
)

// IngestService turns an uploaded receipt photo into a stored receipt:
// store the image, recognize it, then persist market, receipt and items
// in one transaction.
type IngestService struct {
	db                 *sql.DB
	repomanager        repomanager.RepositoryManager
	blobs              blobstore.Store
	recognizer         recognition.Recognizer
	publisher          events.Publisher
	logger             logging.Logger
	recognitionTimeout time.Duration
}

func NewIngestService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, r recognition.Recognizer,
	p events.Publisher, cfg *config.Config, logger logging.Logger) *IngestService {
	return &IngestService{
		db:                 db,
		repomanager:        m,
		blobs:              blobs,
		recognizer:         r,
		publisher:          p,
		logger:             logger,
		recognitionTimeout: cfg.RecognitionTimeout,
	}
}

// Ingest stores, recognizes and persists one receipt image owned by the
// caller. The image is removed again when recognition or persistence
// fails.
func (s *IngestService) Ingest(ctx context.Context, caller models.Identity, upload models.Upload) (*models.ReceiptView, error) {
	if !isImage(upload.ContentType) || upload.Filename == "" {
		return nil, invalidInput("an image file is required")
	}
	if len(upload.Data) == 0 {
		return nil, invalidInput("empty file")
	}

	log := s.logger.With("user_id", caller.ID, "filename", upload.Filename)

	key := blobstore.NewKey(blobstore.ReceiptPrefix, upload.Filename)
	if err := s.blobs.Put(ctx, key, upload.Data, upload.ContentType); err != nil {
		return nil, ensure(common.ErrStorage, err)
	}

	rr, err := s.recognize(ctx, upload)
	if err != nil {
		log.Warn(ctx, "receipt recognition failed", "key", key, "error", err)
		s.discardBlob(ctx, key)
		return nil, err
	}

	view, err := s.persist(ctx, caller, rr, key, upload.Filename)
	if err != nil {
		log.Error(ctx, "receipt persistence failed", "key", key, "error", err)
		s.discardBlob(ctx, key)
		return nil, err
	}

	log.Info(ctx, "receipt ingested",
		"receipt_id", view.Receipt.ID,
		"market_id", view.Market.ID,
		"items", len(view.Items),
		"total", view.Total)

	if err := s.publisher.PublishReceiptIngested(ctx, events.NewReceiptIngested(view)); err != nil {
		log.Warn(ctx, "failed to publish receipt event", "receipt_id", view.Receipt.ID, "error", err)
	}

	return view, nil
}

func (s *IngestService) recognize(ctx context.Context, upload models.Upload) (*models.RecognizedReceipt, error) {
	ctx, cancel := withTimeout(ctx, s.recognitionTimeout)
	defer cancel()

	rr, err := s.recognizer.Recognize(ctx, upload)
	if err != nil {
		return nil, ensure(common.ErrRecognition, err)
	}
	return rr, nil
}

func (s *IngestService) persist(ctx context.Context, caller models.Identity, rr *models.RecognizedReceipt, key, filename string) (*models.ReceiptView, error) {
	var view *models.ReceiptView

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		owner, err := s.repomanager.Users(tx).GetByID(ctx, caller.ID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}

		market, _, err := s.repomanager.Markets(tx).GetOrCreate(ctx, rr.Market.Name, rr.Market.TaxNumber)
		if err != nil {
			return fmt.Errorf("market upsert: %w", err)
		}

		receipt, err := s.repomanager.Receipts(tx).Create(ctx, &models.Receipt{
			Date:             rr.Date,
			ReceiptNumber:    rr.ReceiptNumber,
			MarketID:         market.ID,
			UserID:           caller.ID,
			ImagePath:        key,
			OriginalFilename: filename,
			Address:          rr.Address,
		})
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}

		itemRepo := s.repomanager.Items(tx)
		items := make([]*models.ReceiptItem, 0, len(rr.Items))
		for _, ri := range rr.Items {
			it, err := itemRepo.Create(ctx, &models.ReceiptItem{
				ReceiptID: receipt.ID,
				Name:      ri.Name,
				UnitPrice: ri.UnitPrice,
				Quantity:  ri.Quantity,
				Unit:      ri.Unit,
			})
			if err != nil {
				return fmt.Errorf("insert item %q: %w", ri.Name, err)
			}
			items = append(items, it)
		}

		view = models.NewReceiptView(receipt, owner.Summary(), market, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *IngestService) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn(ctx, "failed to delete orphaned image", "key", key, "error", err)
	}
}
