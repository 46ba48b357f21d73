package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-server/internal/config"
	"account-server/internal/models"
	"account-server/internal/repository"
	"account-server/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure authServiceImpl implements AuthService
var _ AuthService = (*authServiceImpl)(nil)

const tokenIssuer = "account-server"

// authServiceImpl implements the AuthService interface.
type authServiceImpl struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	media       storage.MediaStore
	cfg         *config.Config
	logger      *zap.Logger
}

// NewAuthService creates a new instance of authServiceImpl.
func NewAuthService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository, media storage.MediaStore, cfg *config.Config, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		media:       media,
		cfg:         cfg,
		logger:      logger.Named("AuthService"),
	}
}

// Register creates a new user with its profile. The avatar, if any, is
// uploaded to the media store first; if persistence then fails, the
// uploaded asset is destroyed so no orphan is left behind.
func (s *authServiceImpl) Register(ctx context.Context, input RegisterInput) (*models.User, *models.Profile, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	logFields := []zap.Field{zap.String("username", username), zap.String("email", email)}
	s.logger.Info("Registering new user", logFields...)

	// Uniqueness pre-checks, so the common conflict cases fail before any
	// upload. The unique constraints still catch races at insert time.
	if _, err := s.userRepo.GetUserByUsername(ctx, username); err == nil {
		s.logger.Warn("Registration attempt for existing username", logFields...)
		return nil, nil, models.ErrUserAlreadyExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing username during registration", append(logFields, zap.Error(err))...)
		return nil, nil, fmt.Errorf("error checking existing username: %w", err)
	}
	if _, err := s.userRepo.GetUserByEmail(ctx, email); err == nil {
		s.logger.Warn("Registration attempt for existing email", logFields...)
		return nil, nil, models.ErrEmailAlreadyExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing email during registration", append(logFields, zap.Error(err))...)
		return nil, nil, fmt.Errorf("error checking existing email: %w", err)
	}

	// The password is hashed exactly once, here. No later persistence path
	// touches password_hash.
	hashedPassword, err := hashPassword(input.Password, s.cfg.PasswordPepper)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var avatar *storage.UploadResult
	if input.AvatarPath != "" {
		avatar, err = s.media.Upload(ctx, input.AvatarPath)
		if err != nil {
			// An unreachable image host should not block registration; the
			// profile is simply created without an avatar.
			s.logger.Warn("Avatar upload failed, continuing without avatar", append(logFields, zap.Error(err))...)
			avatar = nil
		}
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hashedPassword,
	}
	profile := &models.Profile{}
	if avatar != nil {
		profile.AvatarURL = &avatar.URL
	}

	if err := s.userRepo.CreateUserWithProfile(ctx, user, profile); err != nil {
		if avatar != nil {
			if delErr := s.media.Destroy(ctx, avatar.PublicID); delErr != nil {
				s.logger.Error("Failed to destroy uploaded avatar after registration failure", append(logFields, zap.Error(delErr))...)
			}
		}
		if errors.Is(err, models.ErrUserAlreadyExists) || errors.Is(err, models.ErrEmailAlreadyExists) {
			return nil, nil, err
		}
		s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		return nil, nil, err
	}

	s.logger.Info("User registered successfully", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return user.Sanitize(), profile, nil
}

// Login authenticates a user by username or email and returns a token pair.
func (s *authServiceImpl) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, *models.TokenDetails, error) {
	login := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	s.logger.Info("Login attempt", zap.String("login", login))

	user, err := s.userRepo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// Unknown identifier and wrong password are indistinguishable to
			// the client, so login cannot be used to enumerate usernames.
			s.logger.Warn("Login failed: user not found", zap.String("login", login))
			return nil, nil, models.ErrInvalidCredentials
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err), zap.String("login", login))
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !checkPasswordHash(password, user.PasswordHash, s.cfg.PasswordPepper) {
		s.logger.Warn("Login failed: invalid password", zap.String("login", login), zap.String("userID", user.ID.String()))
		return nil, nil, models.ErrInvalidCredentials
	}

	td, err := s.createTokens(user)
	if err != nil {
		s.logger.Error("Failed to create tokens during login", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	// Any previously issued refresh token is invalidated by the overwrite.
	if err := s.userRepo.SetRefreshToken(ctx, user.ID, td.RefreshToken); err != nil {
		s.logger.Error("Failed to persist refresh token during login", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	s.logger.Info("User logged in successfully", zap.String("userID", user.ID.String()))
	return user.Sanitize(), td, nil
}

// Logout clears the stored refresh token, so no previously issued refresh
// token can mint new pairs.
func (s *authServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	log := s.logger.With(zap.String("userID", userID.String()))
	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("Logout for unknown user")
			return err
		}
		log.Error("Failed to clear refresh token during logout", zap.Error(err))
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	log.Info("User logged out")
	return nil
}

// Refresh verifies a refresh token and rotates it for a new pair. Every
// verification failure surfaces as an explicit error; nothing is swallowed.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	s.logger.Info("Token refresh attempt")

	claims := &models.RefreshClaims{}
	if err := s.parseToken(refreshToken, s.cfg.RefreshTokenSecret, claims); err != nil {
		s.logger.Warn("Refresh token verification failed", zap.Error(err))
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Refresh attempt for non-existent user", zap.String("userID", claims.UserID.String()))
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("Failed to get user during refresh", zap.Error(err), zap.String("userID", claims.UserID.String()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	td, err := s.createTokens(user)
	if err != nil {
		s.logger.Error("Failed to create tokens during refresh", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	// Compare-and-swap against the stored token: a superseded or cleared
	// token loses here, so replay after rotation or logout is rejected and
	// concurrent refreshes have exactly one winner.
	if err := s.userRepo.RotateRefreshToken(ctx, user.ID, refreshToken, td.RefreshToken); err != nil {
		if errors.Is(err, models.ErrTokenMismatch) {
			s.logger.Warn("Refresh attempt with superseded token", zap.String("userID", user.ID.String()))
			return nil, models.ErrTokenMismatch
		}
		s.logger.Error("Failed to rotate refresh token", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.logger.Info("Token refreshed successfully", zap.String("userID", user.ID.String()))
	return td, nil
}

// Authenticate verifies an access token and resolves the sanitized user.
func (s *authServiceImpl) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims := &models.AccessClaims{}
	if err := s.parseToken(accessToken, s.cfg.AccessTokenSecret, claims); err != nil {
		s.logger.Debug("Access token verification failed", zap.Error(err))
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("User from valid access token not found", zap.String("userID", claims.UserID.String()))
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("Failed to get user during authentication", zap.Error(err), zap.String("userID", claims.UserID.String()))
		return nil, fmt.Errorf("failed to get user for authentication: %w", err)
	}

	return user.Sanitize(), nil
}

// GetProfile returns the profile owned by the given user.
func (s *authServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profileRepo.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to get profile", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// parseToken parses and validates a signed token into claims, mapping jwt
// errors onto the models sentinels.
func (s *authServiceImpl) parseToken(tokenString, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return models.ErrTokenMalformed
		default:
			return models.ErrTokenInvalid
		}
	}
	if !token.Valid {
		return models.ErrTokenInvalid
	}
	return nil
}

// createTokens generates a new access and refresh token pair for a user.
func (s *authServiceImpl) createTokens(user *models.User) (*models.TokenDetails, error) {
	now := time.Now()
	td := &models.TokenDetails{
		AtExpires: now.Add(s.cfg.AccessTokenTTL).Unix(),
		RtExpires: now.Add(s.cfg.RefreshTokenTTL).Unix(),
	}

	acClaims := &models.AccessClaims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Unix(td.AtExpires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, acClaims).SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	td.AccessToken = accessToken

	rtClaims := &models.RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Unix(td.RtExpires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rtClaims).SignedString([]byte(s.cfg.RefreshTokenSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	td.RefreshToken = refreshToken

	return td, nil
}
