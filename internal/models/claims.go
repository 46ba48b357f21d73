package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the payload of an access token. It carries enough
// identity to authorize a request without a database round trip.
type AccessClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// RefreshClaims is the minimal payload of a refresh token. Only the user
// id is embedded; everything else is re-resolved from storage on refresh.
type RefreshClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}
