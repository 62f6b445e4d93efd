// Package refreshtokens stores the opaque, single-use refresh tokens issued
// at login and rotated on refresh.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, valid for validity from now.
	Create(ctx context.Context, userID int64, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete redeems the token. An unknown or already redeemed token yields
	// common.ErrorNotFound.
	Delete(ctx context.Context, token string) error
}
