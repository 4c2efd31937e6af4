package domain

import "time"

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
	RoleClient  = "client"
)

// User statuses.
const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// User is the domain entity for a user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	AvatarURL    string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanManage reports whether the user may perform admin/manager-only actions.
func (u User) CanManage() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}
