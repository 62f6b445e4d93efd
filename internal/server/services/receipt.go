package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
)

const (
	defaultImageName = "result.jpg"
	defaultImageType = "image/*"
)

// ReceiptService lists, reads and edits receipts. Non-admins only ever see
// and touch their own.
type ReceiptService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	blobs        blobstore.Store
	logger       logging.Logger
	queryTimeout time.Duration
}

func NewReceiptService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, cfg *config.Config, logger logging.Logger) *ReceiptService {
	return &ReceiptService{
		db:           db,
		repomanager:  m,
		blobs:        blobs,
		logger:       logger,
		queryTimeout: cfg.QueryTimeout,
	}
}

// List returns one page of receipts matching filter. For non-admins the
// UserID filter is replaced by the caller's id. Total counts with the
// same predicates as the page itself.
func (s *ReceiptService) List(ctx context.Context, caller models.Identity, filter models.ReceiptFilter, page models.Page, sort models.Sort) (*models.ReceiptPage, error) {
	if err := page.Validate(models.MaxPageLimit); err != nil {
		return nil, invalidInput("%v", err)
	}
	if !caller.IsAdmin() {
		id := caller.ID
		filter.UserID = &id
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	receiptRepo := s.repomanager.Receipts(s.db)
	total, err := receiptRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	headers, err := receiptRepo.List(ctx, filter, page, sort)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(headers))
	for i, h := range headers {
		ids[i] = h.Receipt.ID
	}
	items, err := s.repomanager.Items(s.db).ListByReceiptIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*models.ReceiptView, 0, len(headers))
	for _, h := range headers {
		if h.Market == nil || h.User == nil {
			s.logger.Warn(ctx, "skipping receipt with missing market or user", "receipt_id", h.Receipt.ID)
			continue
		}
		views = append(views, models.NewReceiptView(h.Receipt, *h.User, h.Market, items[h.Receipt.ID]))
	}

	return models.NewReceiptPage(views, page, total), nil
}

// Get returns one receipt with its items.
func (s *ReceiptService) Get(ctx context.Context, caller models.Identity, id int64) (*models.ReceiptView, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.view(ctx, s.db, caller, id)
}

func (s *ReceiptService) view(ctx context.Context, db dbx.DBTX, caller models.Identity, id int64) (*models.ReceiptView, error) {
	h, err := s.repomanager.Receipts(db).GetHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(h.Receipt.UserID) {
		return nil, common.ErrForbidden
	}
	if h.Market == nil || h.User == nil {
		return nil, fmt.Errorf("%w: receipt %d references a missing market or user", common.ErrorNotFound, id)
	}

	items, err := s.repomanager.Items(db).ListByReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewReceiptView(h.Receipt, *h.User, h.Market, items), nil
}

// CreateManual stores a receipt typed in by hand. Admins may create it on
// behalf of another user.
func (s *ReceiptService) CreateManual(ctx context.Context, caller models.Identity, in models.ReceiptInput) (*models.ReceiptView, error) {
	if in.Date.IsZero() {
		return nil, invalidInput("date is required")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	owner := caller.ID
	if in.UserID != nil && caller.IsAdmin() {
		owner = *in.UserID
	}

	var id int64
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).GetByID(ctx, owner); err != nil {
			return fmt.Errorf("user %d: %w", owner, err)
		}
		if _, err := s.repomanager.Markets(tx).GetByID(ctx, in.MarketID); err != nil {
			return fmt.Errorf("market %d: %w", in.MarketID, err)
		}

		receipt, err := s.repomanager.Receipts(tx).Create(ctx, &models.Receipt{
			Date:          in.Date,
			ReceiptNumber: in.ReceiptNumber,
			MarketID:      in.MarketID,
			UserID:        owner,
			Address:       in.Address,
		})
		if err != nil {
			return err
		}
		id = receipt.ID

		itemRepo := s.repomanager.Items(tx)
		for _, it := range in.Items {
			if _, err := itemRepo.Create(ctx, itemFromInput(id, it)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "receipt created", "receipt_id", id, "user_id", owner, "by", caller.ID)
	return s.Get(ctx, caller, id)
}

// Update applies patch to a receipt. When patch.Items is non-nil the item
// set is reconciled: items with an id are updated, items without one are
// inserted, and existing items left out are deleted.
func (s *ReceiptService) Update(ctx context.Context, caller models.Identity, id int64, patch models.ReceiptPatch) (*models.ReceiptView, error) {
	if patch.Items != nil {
		if err := validateItems(patch.Items); err != nil {
			return nil, err
		}
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		receiptRepo := s.repomanager.Receipts(tx)
		r, err := receiptRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(r.UserID) {
			return common.ErrForbidden
		}

		applyPatch(r, patch)
		if patch.MarketID != nil {
			if _, err := s.repomanager.Markets(tx).GetByID(ctx, *patch.MarketID); err != nil {
				return fmt.Errorf("market %d: %w", *patch.MarketID, err)
			}
		}
		if err := receiptRepo.Update(ctx, r); err != nil {
			return err
		}

		if patch.Items != nil {
			return s.reconcileItems(ctx, tx, id, patch.Items)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.Get(ctx, caller, id)
}

func (s *ReceiptService) reconcileItems(ctx context.Context, tx dbx.DBTX, receiptID int64, inputs []models.ItemInput) error {
	itemRepo := s.repomanager.Items(tx)
	existing, err := itemRepo.ListByReceipt(ctx, receiptID)
	if err != nil {
		return err
	}

	owned := make(map[int64]bool, len(existing))
	for _, it := range existing {
		owned[it.ID] = true
	}

	kept := make(map[int64]bool, len(inputs))
	for _, in := range inputs {
		if in.ID == nil {
			if _, err := itemRepo.Create(ctx, itemFromInput(receiptID, in)); err != nil {
				return err
			}
			continue
		}
		if !owned[*in.ID] {
			return invalidInput("item %d does not belong to receipt %d", *in.ID, receiptID)
		}
		it := itemFromInput(receiptID, in)
		it.ID = *in.ID
		if err := itemRepo.Update(ctx, it); err != nil {
			return err
		}
		kept[*in.ID] = true
	}

	for _, it := range existing {
		if kept[it.ID] {
			continue
		}
		if err := itemRepo.Delete(ctx, receiptID, it.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the receipt and its items. The image is removed
// afterwards; a failure there is only logged.
func (s *ReceiptService) Delete(ctx context.Context, caller models.Identity, id int64) error {
	var imagePath string
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		receiptRepo := s.repomanager.Receipts(tx)
		r, err := receiptRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(r.UserID) {
			return common.ErrForbidden
		}
		if err := s.repomanager.Items(tx).DeleteByReceipt(ctx, id); err != nil {
			return err
		}
		imagePath = r.ImagePath
		return receiptRepo.Delete(ctx, id)
	}); err != nil {
		return err
	}

	if imagePath != "" {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), imagePath); err != nil {
			s.logger.Warn(ctx, "failed to delete receipt image", "receipt_id", id, "key", imagePath, "error", err)
		}
	}
	s.logger.Info(ctx, "receipt deleted", "receipt_id", id, "by", caller.ID)
	return nil
}

// Image returns the stored photo of a receipt.
func (s *ReceiptService) Image(ctx context.Context, caller models.Identity, id int64) (*models.ReceiptImage, error) {
	r, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(r.UserID) {
		return nil, common.ErrForbidden
	}
	if r.ImagePath == "" {
		return nil, fmt.Errorf("%w: receipt %d has no image", common.ErrorNotFound, id)
	}

	data, err := s.blobs.Get(ctx, r.ImagePath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: receipt image file", common.ErrorNotFound)
		}
		return nil, ensure(common.ErrStorage, err)
	}

	return &models.ReceiptImage{
		Data:        data,
		Filename:    downloadName(r.OriginalFilename),
		ContentType: mediaType(r.ImagePath),
	}, nil
}

func (s *ReceiptService) lookup(ctx context.Context, id int64) (*models.Receipt, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.repomanager.Receipts(s.db).GetByID(ctx, id)
}

func downloadName(original string) string {
	if filepath.Ext(original) == "" {
		return defaultImageName
	}
	return filepath.Base(original)
}

func mediaType(key string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
	if t == "" {
		return defaultImageType
	}
	return t
}

func applyPatch(r *models.Receipt, p models.ReceiptPatch) {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.ReceiptNumber != nil {
		r.ReceiptNumber = *p.ReceiptNumber
	}
	if p.MarketID != nil {
		r.MarketID = *p.MarketID
	}
	if p.PostalCode != nil {
		r.Address.PostalCode = *p.PostalCode
	}
	if p.City != nil {
		r.Address.City = *p.City
	}
	if p.StreetName != nil {
		r.Address.StreetName = *p.StreetName
	}
	if p.StreetNumber != nil {
		r.Address.StreetNumber = *p.StreetNumber
	}
}

func validateItems(items []models.ItemInput) error {
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return invalidInput("item %d: name is required", i)
		}
		if it.Quantity <= 0 {
			return invalidInput("item %d: quantity must be positive", i)
		}
	}
	return nil
}

func itemFromInput(receiptID int64, in models.ItemInput) *models.ReceiptItem {
	return &models.ReceiptItem{
		ReceiptID: receiptID,
		Name:      in.Name,
		UnitPrice: in.UnitPrice,
		Quantity:  in.Quantity,
		Unit:      in.Unit,
	}
}
