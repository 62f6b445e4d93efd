package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/auth"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService handles accounts and authentication:
// - Login / RefreshToken: verify credentials, mint and rotate tokens
// - Register / RegisterPublic: create accounts with roles
// - Identify: resolve an access token to a live identity
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	blobs                        blobstore.Store
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	queryTimeout                 time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		blobs:                        blobs,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		queryTimeout:                 cfg.QueryTimeout,
	}
}

// SeedRoles inserts every role of the enumeration that is missing.
func (s *UserService) SeedRoles(ctx context.Context) error {
	return s.repomanager.Roles(s.db).Seed(ctx, models.AllRoles)
}

// Login verifies the password and returns a new TokenPair. Unknown users,
// wrong passwords and disabled accounts all yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.HashedPassword, password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: account disabled", common.ErrorUnauthorized)
	}

	return s.generateTokenPair(ctx, user, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: refresh token not found or already used", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expired(time.Now()) {
		if err := repo.Delete(ctx, refreshToken); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "failed to delete expired refresh token", "error", err)
		}
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: refresh token already used", common.ErrInvalidToken)
			}
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}
		if user.Disabled {
			return fmt.Errorf("%w: account disabled", common.ErrorUnauthorized)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Identify resolves an access token to the identity of a live, enabled
// user. Roles come from the store, not from the token.
func (s *UserService) Identify(ctx context.Context, accessToken string) (models.Identity, error) {
	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return models.Identity{}, err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.Identity{}, fmt.Errorf("%w: user not found", common.ErrorUnauthorized)
		}
		return models.Identity{}, err
	}
	if user.Disabled {
		return models.Identity{}, fmt.Errorf("%w: account disabled", common.ErrorUnauthorized)
	}
	return user.Identity(), nil
}

// Register creates an account on behalf of an admin.
func (s *UserService) Register(ctx context.Context, caller models.Identity, in models.RegisterInput) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	return s.register(ctx, in)
}

// RegisterPublic is self-service sign-up: always the user role, never
// disabled.
func (s *UserService) RegisterPublic(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	in.Roles = []models.RoleName{models.RoleUser}
	in.Disabled = false
	return s.register(ctx, in)
}

func (s *UserService) register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, invalidInput("username is required")
	}
	if in.Password == "" {
		return nil, invalidInput("password is required")
	}
	if len(in.Roles) == 0 {
		in.Roles = []models.RoleName{models.RoleUser}
	}
	if err := validateRoles(in.Roles); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:       in.Username,
		Email:          normalizeEmail(in.Email),
		FullName:       in.FullName,
		HashedPassword: hash,
		Disabled:       in.Disabled,
		Roles:          in.Roles,
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
		return repo.SetRoles(ctx, user.ID, user.Roles)
	}); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username, "roles", user.Roles)
	return user, nil
}

// List returns a page of users. Admin only.
func (s *UserService) List(ctx context.Context, caller models.Identity, filter models.UserFilter, page models.Page) (*models.UserPage, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	if err := page.Validate(models.MaxPageLimit); err != nil {
		return nil, invalidInput("%v", err)
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	repo := s.repomanager.Users(s.db)
	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &models.UserPage{Users: list, Skip: page.Skip, Limit: page.Limit, Total: total}, nil
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, caller models.Identity) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return s.repomanager.Users(s.db).GetByID(ctx, caller.ID)
}

// Update changes an account. Users may edit themselves; only admins may
// edit others or touch Disabled and Roles.
func (s *UserService) Update(ctx context.Context, caller models.Identity, id int64, patch models.UserPatch) (*models.User, error) {
	if !caller.CanAccess(id) {
		return nil, common.ErrForbidden
	}
	if !caller.IsAdmin() {
		if patch.Disabled != nil {
			return nil, fmt.Errorf("%w: cannot change disabled status", common.ErrForbidden)
		}
		if patch.Roles != nil {
			return nil, fmt.Errorf("%w: cannot change roles", common.ErrForbidden)
		}
	}
	if patch.Roles != nil {
		if err := validateRoles(patch.Roles); err != nil {
			return nil, err
		}
	}

	var hash string
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, invalidInput("password must not be empty")
		}
		var err error
		if hash, err = auth.HashPassword(*patch.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	var updated *models.User
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Email != nil {
			user.Email = normalizeEmail(patch.Email)
		}
		if patch.FullName != nil {
			user.FullName = *patch.FullName
		}
		if patch.Disabled != nil {
			user.Disabled = *patch.Disabled
		}
		if hash != "" {
			user.HashedPassword = hash
		}
		if err := repo.Update(ctx, user); err != nil {
			return err
		}
		if patch.Roles != nil {
			if err := repo.SetRoles(ctx, user.ID, patch.Roles); err != nil {
				return err
			}
			user.Roles = patch.Roles
		}
		updated = user
		return nil
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an account. Admin only; refused with ErrConflict while
// the user still owns receipts.
func (s *UserService) Delete(ctx context.Context, caller models.Identity, id int64) error {
	if !caller.IsAdmin() {
		return common.ErrForbidden
	}

	var picture *string
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := s.repomanager.Receipts(tx).CountByUser(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: user owns %d receipts", common.ErrConflict, n)
		}
		picture = user.ProfilePicture
		return s.repomanager.Users(tx).Delete(ctx, id)
	}); err != nil {
		return err
	}

	if picture != nil {
		s.deleteBlob(ctx, *picture)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id, "by", caller.ID)
	return nil
}

// SetProfilePicture stores an image as the caller's profile picture and
// drops the previous one.
func (s *UserService) SetProfilePicture(ctx context.Context, caller models.Identity, upload models.Upload) (*models.User, error) {
	if !isImage(upload.ContentType) || upload.Filename == "" || len(upload.Data) == 0 {
		return nil, invalidInput("an image file is required")
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	key := blobstore.NewKey(blobstore.ProfilePicturePrefix, upload.Filename)
	if err := s.blobs.Put(ctx, key, upload.Data, upload.ContentType); err != nil {
		return nil, ensure(common.ErrStorage, err)
	}

	if err := repo.SetProfilePicture(ctx, user.ID, key); err != nil {
		s.deleteBlob(ctx, key)
		return nil, err
	}

	if user.ProfilePicture != nil {
		s.deleteBlob(ctx, *user.ProfilePicture)
	}
	user.ProfilePicture = &key
	return user, nil
}

// --- helpers below ---

func (s *UserService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to delete blob", "key", key, "error", err)
	}
}

func (s *UserService) generateAccessToken(user *models.User) (string, error) {
	return auth.GenerateToken(user.Identity(), s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %w", common.ErrorInternal, err)
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %w", common.ErrorInternal, err)
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, user.ID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("%w: store refresh token: %w", common.ErrorInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validateRoles(roles []models.RoleName) error {
	for _, r := range roles {
		if _, ok := models.ParseRole(string(r)); !ok {
			return invalidInput("unknown role %q", r)
		}
	}
	return nil
}

// normalizeEmail maps blank emails to NULL so that the unique index does
// not treat them as duplicates.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.TrimSpace(*email)
	if e == "" {
		return nil
	}
	return &e
}
