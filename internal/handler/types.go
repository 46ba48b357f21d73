package handler

import "account-server/internal/models"

type registerRequest struct {
	FullName        string `form:"fullName" binding:"required"`
	Username        string `form:"username" binding:"required"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirmPassword" binding:"required"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

// refreshRequest is the body fallback when the refresh token cookie is absent.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerResponse struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
}

type loginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}
