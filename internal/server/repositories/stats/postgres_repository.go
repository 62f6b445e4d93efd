package stats

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/receipts"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const lineTotal = `i.unit_price * i.quantity`

// scopeFilter reuses the receipt listing predicates over receipts r.
func scopeFilter(s models.StatsScope) *receipts.Where {
	return receipts.BuildFilter(models.ReceiptFilter{
		UserID:   s.UserID,
		DateFrom: s.DateFrom,
		DateTo:   s.DateTo,
	})
}

// truncUnit maps a bucket to a date_trunc field. Only these literals ever
// reach the SQL text.
func truncUnit(b models.Bucket) (string, error) {
	switch b {
	case models.BucketDay:
		return "day", nil
	case models.BucketMonth:
		return "month", nil
	case models.BucketYear:
		return "year", nil
	default:
		return "", fmt.Errorf("unsupported bucket %q", b)
	}
}

func (r *PostgresRepository) Summary(ctx context.Context, scope models.StatsScope) (models.Summary, error) {
	w := scopeFilter(scope)
	query := `
		SELECT
			(SELECT COALESCE(SUM(` + lineTotal + `), 0)
			 FROM receipt_items i JOIN receipts r ON r.id = i.receipt_id` + w.SQL() + `),
			(SELECT COUNT(*) FROM receipts r` + w.SQL() + `)
	`
	var s models.Summary
	if err := r.db.QueryRowContext(ctx, query, w.Args...).Scan(&s.TotalSpent, &s.TotalReceipts); err != nil {
		return models.Summary{}, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) TopItems(ctx context.Context, scope models.StatsScope, limit int) ([]models.TopItem, error) {
	w := scopeFilter(scope)
	query := `
		SELECT i.name, COALESCE(SUM(i.quantity), 0) AS qty, COALESCE(SUM(` + lineTotal + `), 0)
		FROM receipt_items i
		JOIN receipts r ON r.id = i.receipt_id` + w.SQL() + `
		GROUP BY i.name
		ORDER BY qty DESC, i.name
		LIMIT ` + fmt.Sprintf("$%d", w.Next())

	rows, err := r.db.QueryContext(ctx, query, append(w.Args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.TopItem{}
	for rows.Next() {
		var it models.TopItem
		if err := rows.Scan(&it.Name, &it.Count, &it.TotalSpent); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) WordCloud(ctx context.Context, scope models.StatsScope, limit int) ([]models.WordCloudItem, error) {
	w := scopeFilter(scope)
	query := `
		SELECT i.name, COUNT(*) AS occurrences, COALESCE(SUM(` + lineTotal + `), 0)
		FROM receipt_items i
		JOIN receipts r ON r.id = i.receipt_id` + w.SQL() + `
		GROUP BY i.name
		ORDER BY occurrences DESC, i.name
		LIMIT ` + fmt.Sprintf("$%d", w.Next())

	rows, err := r.db.QueryContext(ctx, query, append(w.Args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.WordCloudItem{}
	for rows.Next() {
		var it models.WordCloudItem
		if err := rows.Scan(&it.Text, &it.Value, &it.TotalSpent); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) TimeSeries(ctx context.Context, scope models.StatsScope, kind models.SeriesKind, bucket models.Bucket) ([]models.TimeSeriesPoint, error) {
	unit, err := truncUnit(bucket)
	if err != nil {
		return nil, err
	}

	w := scopeFilter(scope)
	var query string
	switch kind {
	case models.SeriesReceipts:
		query = `
			SELECT date_trunc('` + unit + `', r.date) AS bucket, COUNT(*)::double precision
			FROM receipts r` + w.SQL() + `
			GROUP BY bucket
			ORDER BY bucket`
	case models.SeriesAmounts:
		// receipts without items contribute no bucket
		query = `
			SELECT date_trunc('` + unit + `', r.date) AS bucket, SUM(` + lineTotal + `)
			FROM receipts r
			JOIN receipt_items i ON i.receipt_id = r.id` + w.SQL() + `
			GROUP BY bucket
			ORDER BY bucket`
	default:
		return nil, fmt.Errorf("unsupported series kind %q", kind)
	}

	rows, err := r.db.QueryContext(ctx, query, w.Args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.TimeSeriesPoint{}
	for rows.Next() {
		var p models.TimeSeriesPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Market rollups group by market name, so markets sharing a name under
// different tax numbers are merged.

func (r *PostgresRepository) MarketTotalSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return r.marketRollup(ctx, scope, `COALESCE(SUM(`+lineTotal+`), 0)`)
}

func (r *PostgresRepository) MarketTotalReceipts(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return r.marketRollup(ctx, scope, `COUNT(DISTINCT r.id)::double precision`)
}

func (r *PostgresRepository) MarketAverageSpent(ctx context.Context, scope models.StatsScope) ([]models.MarketValue, error) {
	return r.marketRollup(ctx, scope, `COALESCE(SUM(`+lineTotal+`), 0) / COUNT(DISTINCT r.id)`)
}

func (r *PostgresRepository) marketRollup(ctx context.Context, scope models.StatsScope, valueExpr string) ([]models.MarketValue, error) {
	w := scopeFilter(scope)
	query := `
		SELECT m.name, ` + valueExpr + ` AS value
		FROM receipts r
		JOIN markets m ON m.id = r.market_id
		LEFT JOIN receipt_items i ON i.receipt_id = r.id` + w.SQL() + `
		GROUP BY m.name
		ORDER BY value DESC, m.name`

	rows, err := r.db.QueryContext(ctx, query, w.Args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.MarketValue{}
	for rows.Next() {
		var mv models.MarketValue
		if err := rows.Scan(&mv.MarketName, &mv.Value); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
