package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const receiptCols = `r.id, r.date, r.receipt_number, r.market_id, r.user_id, r.image_path, r.original_filename,
	r.postal_code, r.city, r.street_name, r.street_number`

const selectHeader = `
	SELECT ` + receiptCols + `,
	       m.id, m.name, m.tax_number, u.id, u.username, u.fullname
	FROM receipts r
	LEFT JOIN markets m ON m.id = r.market_id
	LEFT JOIN users u ON u.id = r.user_id
`

func receiptDest(r *models.Receipt) []any {
	return []any{&r.ID, &r.Date, &r.ReceiptNumber, &r.MarketID, &r.UserID, &r.ImagePath, &r.OriginalFilename,
		&r.Address.PostalCode, &r.Address.City, &r.Address.StreetName, &r.Address.StreetNumber}
}

func scanHeader(s dbx.Scanner) (*models.ReceiptHeader, error) {
	r := &models.Receipt{}
	var (
		marketID           sql.NullInt64
		marketName, taxNum sql.NullString
		userID             sql.NullInt64
		username, fullName sql.NullString
	)
	dest := append(receiptDest(r), &marketID, &marketName, &taxNum, &userID, &username, &fullName)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	h := &models.ReceiptHeader{Receipt: r}
	if marketID.Valid {
		h.Market = &models.Market{ID: marketID.Int64, Name: marketName.String, TaxNumber: taxNum.String}
	}
	if userID.Valid {
		h.User = &models.UserSummary{ID: userID.Int64, Username: username.String, FullName: fullName.String}
	}
	return h, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rc *models.Receipt) (*models.Receipt, error) {
	query := `
		INSERT INTO receipts (date, receipt_number, market_id, user_id, image_path, original_filename,
		                      postal_code, city, street_name, street_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	a := rc.Address
	err := r.db.QueryRowContext(ctx, query,
		rc.Date, rc.ReceiptNumber, rc.MarketID, rc.UserID, rc.ImagePath, rc.OriginalFilename,
		a.PostalCode, a.City, a.StreetName, a.StreetNumber).Scan(&rc.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	rc := &models.Receipt{}
	query := `SELECT ` + receiptCols + ` FROM receipts r WHERE r.id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(receiptDest(rc)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rc, nil
}

func (r *PostgresRepository) GetHeader(ctx context.Context, id int64) (*models.ReceiptHeader, error) {
	h, err := scanHeader(r.db.QueryRowContext(ctx, selectHeader+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rc *models.Receipt) error {
	query := `
		UPDATE receipts
		SET date = $2, receipt_number = $3, market_id = $4, postal_code = $5,
		    city = $6, street_name = $7, street_number = $8
		WHERE id = $1
	`
	a := rc.Address
	res, err := r.db.ExecContext(ctx, query, rc.ID, rc.Date, rc.ReceiptNumber, rc.MarketID,
		a.PostalCode, a.City, a.StreetName, a.StreetNumber)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Count(ctx context.Context, f models.ReceiptFilter) (int64, error) {
	w := BuildFilter(f)
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT r.id) FROM receipts r`+w.SQL(), w.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, f models.ReceiptFilter, page models.Page, sort models.Sort) ([]*models.ReceiptHeader, error) {
	w := BuildFilter(f)
	query := selectHeader + w.SQL() + orderBy(sort) + fmt.Sprintf(" LIMIT $%d OFFSET $%d", w.Next(), w.Next()+1)
	args := append(w.Args, page.Limit, page.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.ReceiptHeader{}
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
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
