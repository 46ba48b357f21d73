package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"account-server/internal/models"
	"account-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: "Invalid request data: " + err.Error()})
		return
	}

	if len(req.Username) < minUsernameLength || len(req.Username) > maxUsernameLength {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: fmt.Sprintf("Username length must be between %d and %d characters", minUsernameLength, maxUsernameLength)})
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: "Username can only contain letters, numbers, underscores, and hyphens"})
		return
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: fmt.Sprintf("Password length must be between %d and %d characters", minPasswordLength, maxPasswordLength)})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: "Passwords do not match"})
		return
	}

	avatarPath, err := h.spoolAvatar(c)
	if err != nil {
		zap.L().Error("Failed to spool avatar upload", zap.Error(err))
		h.handleServiceError(c, fmt.Errorf("failed to store uploaded avatar: %w", err))
		return
	}

	user, profile, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		FullName:   req.FullName,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		AvatarPath: avatarPath,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	registrationsTotal.Inc()
	c.JSON(http.StatusCreated, registerResponse{User: user, Profile: profile})
}

// spoolAvatar writes an optional multipart avatar file to the local temp
// dir and returns its path, or "" when the request carries no avatar.
func (h *AuthHandler) spoolAvatar(c *gin.Context) (string, error) {
	file, err := c.FormFile("avatar")
	if err != nil {
		// Missing file is the normal case; only multipart parse failures on
		// a present file are reported by ShouldBind above.
		return "", nil
	}
	if err := os.MkdirAll(h.cfg.UploadTempDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.cfg.UploadTempDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	user, tokens, err := h.authService.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	loginsTotal.Inc()
	h.setTokenCookies(c, tokens)
	c.JSON(http.StatusOK, loginResponse{User: user, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (h *AuthHandler) logout(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		zap.L().Error("Authenticated user missing in context during logout")
		h.handleServiceError(c, models.ErrInternalServer)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), user.ID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

func (h *AuthHandler) getMe(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		zap.L().Error("Authenticated user missing in context during getMe")
		h.handleServiceError(c, models.ErrInternalServer)
		return
	}

	profile, err := h.authService.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, registerResponse{User: user, Profile: profile})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	// Cookie transport first, JSON body as fallback.
	refreshToken, _ := c.Cookie(refreshTokenCookie)
	if refreshToken == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		tokenVerificationsTotal.WithLabelValues("refresh", "failure").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Refresh token is required"})
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		tokenVerificationsTotal.WithLabelValues("refresh", "failure").Inc()
		h.handleServiceError(c, err)
		return
	}

	refreshesTotal.Inc()
	tokenVerificationsTotal.WithLabelValues("refresh", "success").Inc()
	h.setTokenCookies(c, tokens)
	c.JSON(http.StatusOK, tokens)
}

// setTokenCookies stores the pair as http-only cookies. Secure is off only
// in development so local plain-http clients still work.
func (h *AuthHandler) setTokenCookies(c *gin.Context, tokens *models.TokenDetails) {
	secure := h.cfg.IsProduction()
	c.SetCookie(accessTokenCookie, tokens.AccessToken, int(h.cfg.AccessTokenTTL.Seconds()), "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, tokens.RefreshToken, int(h.cfg.RefreshTokenTTL.Seconds()), "/", "", secure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	secure := h.cfg.IsProduction()
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", secure, true)
}
