// Package model contains the dashboard user documents.
package model

import "time"

const (
	// CollUsers users collection
	CollUsers = "users"
	// CollOTPs pending login codes, keyed by user id
	CollOTPs = "otps"
	// CollSessions sessions, used when redis is not configured
	CollSessions = "sessions"
)

// Role of a dashboard user
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// User dashboard account
type User struct {
	ID           string     `firestore:"id" bson:"id" json:"id"`
	Email        string     `firestore:"email" bson:"email" json:"email"`
	Name         string     `firestore:"name" bson:"name" json:"name"`
	Role         Role       `firestore:"role" bson:"role" json:"role"`
	PasswordHash string     `firestore:"password_hash" bson:"password_hash" json:"-"`
	Disabled     bool       `firestore:"disabled" bson:"disabled" json:"disabled"`
	LastLoginAt  *time.Time `firestore:"last_login_at" bson:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `firestore:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `firestore:"updated_at" bson:"updated_at" json:"updated_at"`
}

// OTP pending one time login code
type OTP struct {
	// ID is the user id
	ID        string    `firestore:"id" bson:"id" json:"id"`
	CodeHash  string    `firestore:"code_hash" bson:"code_hash" json:"-"`
	ExpiresAt time.Time `firestore:"expires_at" bson:"expires_at" json:"expires_at"`
	Attempts  int64     `firestore:"attempts" bson:"attempts" json:"attempts"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}

// Session is a login session stored in the document store
type Session struct {
	ID        string    `firestore:"id" bson:"id" json:"id"`
	UserID    string    `firestore:"user_id" bson:"user_id" json:"user_id"`
	ExpiresAt time.Time `firestore:"expires_at" bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}
