package items

import (
	"context"
	"database/sql"
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

const itemCols = `id, receipt_id, name, unit_price, quantity, unit`

func (r *PostgresRepository) Create(ctx context.Context, item *models.ReceiptItem) (*models.ReceiptItem, error) {
	query := `
		INSERT INTO receipt_items (receipt_id, name, unit_price, quantity, unit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, item.ReceiptID, item.Name, item.UnitPrice, item.Quantity, item.Unit).Scan(&item.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Update(ctx context.Context, item *models.ReceiptItem) error {
	query := `
		UPDATE receipt_items
		SET name = $3, unit_price = $4, quantity = $5, unit = $6
		WHERE id = $1 AND receipt_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, item.ID, item.ReceiptID, item.Name, item.UnitPrice, item.Quantity, item.Unit)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, receiptID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receipt_items WHERE id = $1 AND receipt_id = $2`, id, receiptID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) DeleteByReceipt(ctx context.Context, receiptID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM receipt_items WHERE receipt_id = $1`, receiptID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByReceipt(ctx context.Context, receiptID int64) ([]*models.ReceiptItem, error) {
	query := `SELECT ` + itemCols + ` FROM receipt_items WHERE receipt_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.ReceiptItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByReceiptIDs(ctx context.Context, receiptIDs []int64) (map[int64][]*models.ReceiptItem, error) {
	result := make(map[int64][]*models.ReceiptItem, len(receiptIDs))
	if len(receiptIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(receiptIDs))
	args := make([]any, len(receiptIDs))
	for i, id := range receiptIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + itemCols + ` FROM receipt_items WHERE receipt_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY receipt_id, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[it.ReceiptID] = append(result[it.ReceiptID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func scanItem(s dbx.Scanner) (*models.ReceiptItem, error) {
	it := &models.ReceiptItem{}
	if err := s.Scan(&it.ID, &it.ReceiptID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Unit); err != nil {
		return nil, err
	}
	return it, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
