package repository

import (
	"context"
	"errors"
	"fmt"

	"account-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgUserRepository implements UserRepository
var _ UserRepository = (*pgUserRepository)(nil)

const userColumns = `id, username, email, full_name, password_hash, refresh_token, created_at, updated_at`

type pgUserRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgUserRepository creates a new PostgreSQL-backed UserRepository.
func NewPgUserRepository(pool *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &pgUserRepository{
		pool:   pool,
		logger: logger.Named("PgUserRepo"),
	}
}

// CreateUserWithProfile inserts the user and its profile inside one
// transaction, so a profile failure never leaves a committed orphan user.
func (r *pgUserRepository) CreateUserWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	logFields := []zap.Field{zap.String("username", user.Username), zap.String("email", user.Email)}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin transaction for user creation", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userQuery := `INSERT INTO users (username, email, full_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, userQuery, user.Username, user.Email, user.FullName, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if conflictErr := mapUniqueViolation(err); conflictErr != nil {
			r.logger.Warn("Attempted to create duplicate user", append(logFields, zap.Error(conflictErr))...)
			return conflictErr
		}
		r.logger.Error("Failed to insert user", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create user in postgres: %w", err)
	}

	profile.UserID = user.ID
	profileQuery := `INSERT INTO profiles (user_id, avatar_url)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, profileQuery, profile.UserID, profile.AvatarURL).
		Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert profile", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create profile in postgres: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit user creation", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	r.logger.Info("User and profile created", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return nil
}

// mapUniqueViolation translates a 23505 error into the matching conflict
// sentinel based on the violated constraint.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return models.ErrEmailAlreadyExists
	default:
		return models.ErrUserAlreadyExists
	}
}

func (r *pgUserRepository) getUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user from postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to get user from postgres: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *pgUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, query, id)
}

// GetUserByUsername retrieves a user by their username.
func (r *pgUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getUser(ctx, query, username)
}

// GetUserByEmail retrieves a user by their email.
func (r *pgUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getUser(ctx, query, email)
}

// GetUserByLogin retrieves a user by username or email in one query.
func (r *pgUserRepository) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return r.getUser(ctx, query, usernameOrEmail)
}

// SetRefreshToken unconditionally stores a new refresh token on the user.
func (r *pgUserRepository) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		r.logger.Error("Failed to set refresh token", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// RotateRefreshToken performs an atomic compare-and-swap on the stored
// refresh token. When the stored value is not the presented one (already
// rotated by a concurrent refresh, or cleared by logout) no row matches
// and the rotation is rejected.
func (r *pgUserRepository) RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error {
	query := `UPDATE users SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token IS NOT DISTINCT FROM $2`
	tag, err := r.pool.Exec(ctx, query, userID, current, next)
	if err != nil {
		r.logger.Error("Failed to rotate refresh token", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Refresh token rotation lost compare-and-swap", zap.String("userID", userID.String()))
		return models.ErrTokenMismatch
	}
	return nil
}

// ClearRefreshToken removes the stored refresh token on logout.
func (r *pgUserRepository) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to clear refresh token", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
