package entity

import (
	"time"
)

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the slice of the account record the chat core reads. Accounts are
// owned by the user service.
type User struct {
	ID       string `json:"id" firestore:"id"`
	Username string `json:"username" firestore:"username"`
	Role     string `json:"role" firestore:"role"`
	Status   string `json:"status" firestore:"status"`

	AvatarURL string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	LastSeen  time.Time `json:"last_seen" firestore:"lastSeen"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Usable reports whether the account may open sessions. An empty status
// predates the status field and counts as active.
func (u *User) Usable() bool {
	return u.Status == "" || u.Status == UserStatusActive
}
