// Package dto request and response shapes of the auth API
package dto

import (
	"time"

	"github.com/Laisky/agency-site/internal/web/auth/model"
)

// UserInput create a user
type UserInput struct {
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// UserUpdate changes role or disabled flag, nil fields are kept
type UserUpdate struct {
	Role     *model.Role `json:"role"`
	Disabled *bool       `json:"disabled"`
}

// LoginInput first login step
type LoginInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	TurnstileToken string `json:"turnstile_token"`
}

// Challenge pending second login step
type Challenge struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// VerifyInput second login step
type VerifyInput struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// LoginResult issued session
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// PasswordInput change own password
type PasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
