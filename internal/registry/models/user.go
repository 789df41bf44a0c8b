package models

import (
	"time"

	"github.com/google/uuid"
)

// Role grants moderation capabilities. Plain users hold RoleUser.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is an account record. DeletedAt soft-deletes the account; whether that
// was a self-service deletion or a moderator ban is recorded only in the audit
// log (action user.ban), never on the user row itself.
type User struct {
	ID          uuid.UUID
	Handle      string
	Name        string
	DisplayName string
	Image       string
	Bio         string
	Role        Role
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanModerate reports whether the user holds moderator or admin rights.
func (u *User) CanModerate() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// PublicUser is the user view joined onto comments and listings.
type PublicUser struct {
	ID          uuid.UUID `json:"id"`
	Handle      string    `json:"handle"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image"`
	Bio         string    `json:"bio"`
}

// ToPublicUser hides soft-deleted users entirely.
func ToPublicUser(u *User) *PublicUser {
	if u == nil || u.DeletedAt != nil {
		return nil
	}
	return &PublicUser{
		ID:          u.ID,
		Handle:      u.Handle,
		Name:        u.Name,
		DisplayName: u.DisplayName,
		Image:       u.Image,
		Bio:         u.Bio,
	}
}
