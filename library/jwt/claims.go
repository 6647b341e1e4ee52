package jwt

import (
	jwtLib "github.com/golang-jwt/jwt/v5"
)

// UserClaims is the payload of a dashboard session token
type UserClaims struct {
	jwtLib.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}
