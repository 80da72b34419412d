package dto

import (
	"time"

	"github.com/spec-kit/ticket-portal/internal/domain"
)

// SignupRequest payload for new users.
type SignupRequest struct {
	Username string `json:"username" form:"username"`
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse describes an account without its credential.
type UserResponse struct {
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewAuthResponse maps a session.
func NewAuthResponse(session *domain.Session) AuthResponse {
	return AuthResponse{Token: session.Token, TokenType: "Bearer", ExpiresAt: session.ExpiresAt}
}

// NewUserResponse maps a user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		Username:  user.Username,
		Name:      user.DisplayName(),
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
