package handler

import (
	"strings"

	"account-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userContextKey = "user"

// AuthMiddleware extracts an access token from the cookie or the
// Authorization header, verifies it and attaches the resolved sanitized
// user to the request context.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, _ := c.Cookie(accessTokenCookie)
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			zap.L().Warn("Access token missing from cookie and Authorization header")
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			h.handleServiceError(c, models.ErrTokenInvalid)
			return
		}

		user, err := h.authService.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			zap.L().Warn("Access token verification failed", zap.Error(err))
			tokenVerificationsTotal.WithLabelValues("access", "failure").Inc()
			h.handleServiceError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("access", "success").Inc()
		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser returns the user attached by AuthMiddleware, nil when absent.
func currentUser(c *gin.Context) *models.User {
	raw, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := raw.(*models.User)
	if !ok {
		return nil
	}
	return user
}
