// Package stats computes spending aggregates in the database. Every query
// takes a StatsScope and filters receipts with the same predicates as the
// receipt listing.
package stats

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	// Summary returns total spend and receipt count from one statement.
	Summary(ctx context.Context, scope models.StatsScope) (models.Summary, error)
	TopItems(ctx context.Context, scope models.StatsScope, limit int) ([]models.TopItem, error)
	WordCloud(ctx context.Context, scope models.StatsScope, limit int) ([]models.WordCloudItem, error)
	TimeSeries(ctx context.Context, scope models.StatsScope, kind models.SeriesKind, bucket models.Bucket) ([]models.TimeSeriesPoint, error)

	MarketTotalSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error)
	MarketTotalReceipts(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error)
	MarketAverageSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error)
}
