package model

import "time"

// User is a registered account.
// This is a pure domain model with no database-specific dependencies or tags.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarPath string    `json:"avatar_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasAvatar reports whether an avatar object is stored for the user.
func (u *User) HasAvatar() bool {
	return u.AvatarPath != ""
}
