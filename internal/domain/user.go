package domain

import "time"

// UserStatus represents lifecycle states for an end-user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a requester: someone who files tickets and replies on their own
// threads.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Suspended reports whether the account may no longer authenticate.
func (u *User) Suspended() bool {
	return u.Status != UserStatusActive
}
