package repository

import (
	"context"

	"account-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts the pgx pool so repositories can run against a pool or a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines user persistence.
type UserRepository interface {
	// CreateUserWithProfile atomically inserts a user and its profile.
	// Returns models.ErrUserAlreadyExists or models.ErrEmailAlreadyExists
	// on uniqueness violations; neither record is persisted on failure.
	CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error

	// GetUserByID returns models.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetUserByUsername returns models.ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByEmail returns models.ErrUserNotFound if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByLogin resolves a user by username or email.
	// Returns models.ErrUserNotFound if neither matches.
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)

	// SetRefreshToken unconditionally stores a new refresh token on the user.
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error

	// RotateRefreshToken swaps the stored refresh token from current to next
	// in a single compare-and-swap update. Returns models.ErrTokenMismatch
	// when the stored value is no longer current (superseded or cleared),
	// so concurrent refreshes with the same token have exactly one winner.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error

	// ClearRefreshToken removes the stored refresh token (logout).
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

// ProfileRepository defines profile persistence.
type ProfileRepository interface {
	// GetProfileByUserID returns models.ErrProfileNotFound if absent.
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}
