package repository

import (
	"context"
	"errors"
	"fmt"

	"account-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgProfileRepository implements ProfileRepository
var _ ProfileRepository = (*pgProfileRepository)(nil)

type pgProfileRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgProfileRepository creates a new PostgreSQL-backed ProfileRepository.
func NewPgProfileRepository(db DBTX, logger *zap.Logger) ProfileRepository {
	return &pgProfileRepository{
		db:     db,
		logger: logger.Named("PgProfileRepo"),
	}
}

// GetProfileByUserID retrieves the profile owned by the given user.
func (r *pgProfileRepository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	query := `SELECT id, user_id, avatar_url, created_at, updated_at FROM profiles WHERE user_id = $1`
	profile := &models.Profile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID, &profile.UserID, &profile.AvatarURL, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProfileNotFound
		}
		r.logger.Error("Failed to get profile from postgres", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to get profile from postgres: %w", err)
	}
	return profile, nil
}
