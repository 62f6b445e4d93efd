package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/markets"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/receipts"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/stats"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

var gooseUpContext = goose.UpContext

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Roles(db dbx.DBTX) roles.Repository {
	return roles.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Markets(db dbx.DBTX) markets.Repository {
	return markets.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Receipts(db dbx.DBTX) receipts.Repository {
	return receipts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Stats(db dbx.DBTX) stats.Repository {
	return stats.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
