package users

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

const selectUser = `
	SELECT u.id, u.username, u.email, u.fullname, u.profile_picture, u.hashed_password,
	       u.disabled, u.created_at, COALESCE(string_agg(r.name, ',' ORDER BY r.name), '')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
`

func scanUser(s dbx.Scanner) (*models.User, error) {
	u := &models.User{}
	var roles string
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.ProfilePicture,
		&u.HashedPassword, &u.Disabled, &u.CreatedAt, &roles); err != nil {
		return nil, err
	}
	u.Roles = splitRoles(roles)
	return u, nil
}

func splitRoles(s string) []models.RoleName {
	roles := []models.RoleName{}
	for _, name := range strings.Split(s, ",") {
		if name != "" {
			roles = append(roles, models.RoleName(name))
		}
	}
	return roles
}

func wrapWriteErr(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: username or email already taken", common.ErrConflict)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, fullname, hashed_password, disabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.HashedPassword, user.Disabled).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, wrapWriteErr(err)
	}
	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := selectUser + where + ` GROUP BY u.id`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `WHERE u.id = $1`, id)
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `WHERE u.username = $1`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `WHERE u.email = $1`, email)
}

func userWhere(f models.UserFilter) (string, []any) {
	if f.Username == "" {
		return "", nil
	}
	return ` WHERE u.username ILIKE $1`, []any{dbx.ContainsPattern(f.Username)}
}

func (r *PostgresRepository) List(ctx context.Context, f models.UserFilter, page models.Page) ([]*models.User, error) {
	where, args := userWhere(f)
	n := len(args)
	query := selectUser + where + fmt.Sprintf(` GROUP BY u.id ORDER BY u.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f models.UserFilter) (int64, error) {
	where, args := userWhere(f)
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, fullname = $3, hashed_password = $4, disabled = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.FullName, user.HashedPassword, user.Disabled)
	if err != nil {
		return wrapWriteErr(err)
	}
	return requireAffected(res)
}

// SetRoles replaces the user's role set.
func (r *PostgresRepository) SetRoles(ctx context.Context, userID int64, roles []models.RoleName) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	query := `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`
	for _, role := range roles {
		res, err := r.db.ExecContext(ctx, query, userID, string(role))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("role %q: %w", role, err)
		}
	}
	return nil
}

func (r *PostgresRepository) SetProfilePicture(ctx context.Context, userID int64, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile_picture = $2 WHERE id = $1`, userID, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
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
