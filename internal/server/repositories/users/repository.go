// Package users persists user accounts together with their roles.
package users

import (
	"context"

	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

// Repository loads users with their roles eagerly. Lookups of missing rows
// return common.ErrorNotFound; unique violations on username or email
// return common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByLogin(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter, page models.Page) ([]*models.User, error)
	Count(ctx context.Context, filter models.UserFilter) (int64, error)
	Update(ctx context.Context, user *models.User) error
	SetRoles(ctx context.Context, userID int64, roles []models.RoleName) error
	SetProfilePicture(ctx context.Context, userID int64, key string) error
	Delete(ctx context.Context, id int64) error
}
