package service

import (
	"context"

	"account-server/internal/models"

	"github.com/google/uuid"
)

// RegisterInput carries validated registration data into the service.
// AvatarPath is the local spool path of an uploaded avatar, empty when the
// request had none.
type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	AvatarPath string
}

// AuthService defines the session controller: registration, login, logout
// and refresh-token rotation.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, *models.Profile, error)
	Login(ctx context.Context, usernameOrEmail, password string) (*models.User, *models.TokenDetails, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)

	// Authenticate verifies an access token and resolves the sanitized user
	// behind it. Used by the request-level auth middleware.
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)

	// GetProfile returns the profile owned by the given user.
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}
