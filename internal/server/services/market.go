package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
)

// DefaultMarketPageLimit is the market listing page size when none is given.
const DefaultMarketPageLimit = 100

type MarketService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	logger       logging.Logger
	queryTimeout time.Duration
}

func NewMarketService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *MarketService {
	return &MarketService{db: db, repomanager: m, logger: logger, queryTimeout: cfg.QueryTimeout}
}

func (s *MarketService) Get(ctx context.Context, id int64) (*models.Market, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.repomanager.Markets(s.db).GetByID(ctx, id)
}

func (s *MarketService) List(ctx context.Context, filter models.MarketFilter, page models.Page) ([]*models.Market, error) {
	if err := page.Validate(models.MaxMarketPageLimit); err != nil {
		return nil, invalidInput("%v", err)
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.repomanager.Markets(s.db).List(ctx, filter, page)
}

// Create adds a market. An existing (name, tax number) pair is ErrConflict.
func (s *MarketService) Create(ctx context.Context, name, taxNumber string) (*models.Market, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("market name is required")
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	m, err := s.repomanager.Markets(s.db).Create(ctx, &models.Market{Name: name, TaxNumber: strings.TrimSpace(taxNumber)})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "market created", "market_id", m.ID, "name", m.Name)
	return m, nil
}

// Update renames a market. Nil fields are left unchanged.
func (s *MarketService) Update(ctx context.Context, id int64, name, taxNumber *string) (*models.Market, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, invalidInput("market name must not be empty")
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	var m *models.Market
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Markets(tx)
		var err error
		if m, err = repo.GetByID(ctx, id); err != nil {
			return err
		}
		if name != nil {
			m.Name = strings.TrimSpace(*name)
		}
		if taxNumber != nil {
			m.TaxNumber = strings.TrimSpace(*taxNumber)
		}
		return repo.Update(ctx, m)
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a market nobody references. Referenced markets are
// refused with ErrConflict.
func (s *MarketService) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Markets(tx)
		if _, err := repo.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := repo.CountReceipts(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d receipts reference market %d", common.ErrConflict, n, id)
		}
		return repo.Delete(ctx, id)
	})
}
