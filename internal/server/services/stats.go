package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/stats"
)

// StatsService computes spending statistics. Every method resolves the
// caller's scope first: non-admins see their own receipts, admins see one
// user when UserID is set and everyone otherwise.
type StatsService struct {
	db                 *sql.DB
	repomanager        repomanager.RepositoryManager
	logger             logging.Logger
	aggregationTimeout time.Duration
}

func NewStatsService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *StatsService {
	return &StatsService{db: db, repomanager: m, logger: logger, aggregationTimeout: cfg.AggregationTimeout}
}

// ResolveScope applies the visibility rules to a requested scope.
func ResolveScope(caller models.Identity, requested models.StatsScope) models.StatsScope {
	if !caller.IsAdmin() {
		id := caller.ID
		requested.UserID = &id
	}
	return requested
}

func (s *StatsService) repo(ctx context.Context) (context.Context, context.CancelFunc, stats.Repository) {
	ctx, cancel := withTimeout(ctx, s.aggregationTimeout)
	return ctx, cancel, s.repomanager.Stats(s.db)
}

func (s *StatsService) Summary(ctx context.Context, caller models.Identity, scope models.StatsScope) (models.Summary, error) {
	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.Summary(ctx, ResolveScope(caller, scope))
}

func (s *StatsService) TotalSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) (float64, error) {
	sum, err := s.Summary(ctx, caller, scope)
	return sum.TotalSpent, err
}

func (s *StatsService) TotalReceipts(ctx context.Context, caller models.Identity, scope models.StatsScope) (int64, error) {
	sum, err := s.Summary(ctx, caller, scope)
	return sum.TotalReceipts, err
}

// AverageReceiptValue divides spend by receipt count taken from the same
// statement, so both numbers see the same rows.
func (s *StatsService) AverageReceiptValue(ctx context.Context, caller models.Identity, scope models.StatsScope) (float64, error) {
	sum, err := s.Summary(ctx, caller, scope)
	return sum.AverageReceiptValue(), err
}

// TopItems groups items by name and orders them by summed quantity. A zero
// limit means the default.
func (s *StatsService) TopItems(ctx context.Context, caller models.Identity, scope models.StatsScope, limit int) ([]models.TopItem, error) {
	limit, err := checkLimit(limit, models.DefaultTopItemsLimit, models.MaxTopItemsLimit)
	if err != nil {
		return nil, err
	}

	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.TopItems(ctx, ResolveScope(caller, scope), limit)
}

// WordCloud groups items by name and orders them by how many lines carry
// the name. A zero limit means the default.
func (s *StatsService) WordCloud(ctx context.Context, caller models.Identity, scope models.StatsScope, limit int) ([]models.WordCloudItem, error) {
	limit, err := checkLimit(limit, models.DefaultWordCloudLimit, models.MaxWordCloudLimit)
	if err != nil {
		return nil, err
	}

	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.WordCloud(ctx, ResolveScope(caller, scope), limit)
}

func (s *StatsService) TimeSeries(ctx context.Context, caller models.Identity, scope models.StatsScope, kind models.SeriesKind, bucket models.Bucket) ([]models.TimeSeriesPoint, error) {
	switch kind {
	case models.SeriesReceipts, models.SeriesAmounts:
	default:
		return nil, invalidInput("unknown series %q", kind)
	}
	if bucket == "" {
		bucket = models.BucketDay
	}
	if _, ok := models.ParseBucket(string(bucket)); !ok {
		return nil, invalidInput("unknown bucket %q", bucket)
	}

	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.TimeSeries(ctx, ResolveScope(caller, scope), kind, bucket)
}

func (s *StatsService) MarketTotalSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error) {
	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.MarketTotalSpent(ctx, ResolveScope(caller, scope))
}

func (s *StatsService) MarketTotalReceipts(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error) {
	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.MarketTotalReceipts(ctx, ResolveScope(caller, scope))
}

func (s *StatsService) MarketAverageSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error) {
	ctx, cancel, repo := s.repo(ctx)
	defer cancel()

	return repo.MarketAverageSpent(ctx, ResolveScope(caller, scope))
}

func checkLimit(limit, def, maxLimit int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > maxLimit {
		return 0, invalidInput("limit must be between 1 and %d, got %d", maxLimit, limit)
	}
	return limit, nil
}
