package dto

import (
	"time"

	dom "taskmate/internal/domain"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// SetRoleStatusRequest is the admin body for PATCH /users/:id.
type SetRoleStatusRequest struct {
	Role   string `json:"role" binding:"required,oneof=admin manager member client"`
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

// UserResponse is returned when user info is needed (e.g. after login).
type UserResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func ToUserResponse(u dom.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		AvatarURL:   u.AvatarURL,
		LastLoginAt: u.LastLoginAt,
	}
}
