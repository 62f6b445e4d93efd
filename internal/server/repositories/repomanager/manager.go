// Package repomanager vends repositories bound to a DBTX, so services can
// run the same repositories inside or outside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/markets"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/receipts"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/stats"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Markets(db dbx.DBTX) markets.Repository
	Receipts(db dbx.DBTX) receipts.Repository
	Items(db dbx.DBTX) items.Repository
	Stats(db dbx.DBTX) stats.Repository
}
