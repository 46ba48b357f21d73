package handler

import (
	"regexp"

	"account-server/internal/config"
	"account-server/internal/service"

	"github.com/gin-gonic/gin"
)

// Validation limits applied before any mutation.
const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 8
	maxPasswordLength = 100
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Cookie names shared by login, refresh, logout and the auth middleware.
const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// AuthHandler handles HTTP requests related to accounts and sessions.
type AuthHandler struct {
	authService service.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// RegisterRoutes mounts the user routes. The rate limiter applies to the
// unauthenticated credential endpoints.
func (h *AuthHandler) RegisterRoutes(router *gin.Engine, rateLimit gin.HandlerFunc) {
	users := router.Group("/api/v1/users")
	if rateLimit != nil {
		users.Use(rateLimit)
	}
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/logout", h.AuthMiddleware(), h.logout)
		users.POST("/tokenRefresh", h.refresh)
		users.GET("/me", h.AuthMiddleware(), h.getMe)
	}
}
