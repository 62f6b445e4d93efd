// Package roles maintains the static role reference table.
package roles

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	// Seed inserts every missing role from names.
	Seed(ctx context.Context, names []models.RoleName) error
}
