package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the optional avatar metadata for a user. Exactly one
// profile exists per user; it is created together with the user during
// registration.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	AvatarURL *string   `db:"avatar_url" json:"avatar"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
