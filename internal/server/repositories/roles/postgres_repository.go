package roles

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Seed(ctx context.Context, names []models.RoleName) error {
	query := `
		INSERT INTO roles (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	for _, name := range names {
		if _, err := r.db.ExecContext(ctx, query, string(name)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
