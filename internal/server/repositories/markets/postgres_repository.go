package markets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Market, error) {
	m := &models.Market{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.Name, &m.TaxNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Market, error) {
	return r.getOne(ctx, `SELECT id, name, tax_number FROM markets WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByNameAndTax(ctx context.Context, name, taxNumber string) (*models.Market, error) {
	return r.getOne(ctx, `SELECT id, name, tax_number FROM markets WHERE name = $1 AND tax_number = $2`, name, taxNumber)
}

// GetOrCreate reads first and inserts with ON CONFLICT DO NOTHING, so a
// concurrent insert of the same pair never aborts the caller's transaction.
// Losing that race yields no row from the insert; the pair is then re-read.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, name, taxNumber string) (*models.Market, bool, error) {
	m, err := r.FindByNameAndTax(ctx, name, taxNumber)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	query := `
		INSERT INTO markets (name, tax_number)
		VALUES ($1, $2)
		ON CONFLICT (name, tax_number) DO NOTHING
		RETURNING id
	`
	m = &models.Market{Name: name, TaxNumber: taxNumber}
	err = r.db.QueryRowContext(ctx, query, name, taxNumber).Scan(&m.ID)
	switch {
	case err == nil:
		return m, true, nil
	case dbx.IsUniqueViolation(err), errors.Is(err, sql.ErrNoRows):
	default:
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	m, err = r.FindByNameAndTax(ctx, name, taxNumber)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, false, fmt.Errorf("%w: market %q/%q was inserted concurrently but is not visible", common.ErrConflict, name, taxNumber)
	}
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Market) (*models.Market, error) {
	query := `
		INSERT INTO markets (name, tax_number)
		VALUES ($1, $2)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, m.Name, m.TaxNumber).Scan(&m.ID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: market already exists", common.ErrConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Market) error {
	res, err := r.db.ExecContext(ctx, `UPDATE markets SET name = $2, tax_number = $3 WHERE id = $1`, m.ID, m.Name, m.TaxNumber)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: market already exists", common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f models.MarketFilter, page models.Page) ([]*models.Market, error) {
	var conds []string
	var args []any
	if f.Name != "" {
		args = append(args, dbx.ContainsPattern(f.Name))
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.TaxNumber != "" {
		args = append(args, dbx.ContainsPattern(f.TaxNumber))
		conds = append(conds, fmt.Sprintf("tax_number ILIKE $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, name, tax_number FROM markets`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	args = append(args, page.Limit, page.Skip)
	fmt.Fprintf(&sb, " ORDER BY name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Market{}
	for rows.Next() {
		m := &models.Market{}
		if err := rows.Scan(&m.ID, &m.Name, &m.TaxNumber); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountReceipts(ctx context.Context, id int64) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts WHERE market_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
