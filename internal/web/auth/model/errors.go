package model

import (
	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/library/apperr"
)

var (
	// ErrInvalidCredentials wrong email or password
	ErrInvalidCredentials = errors.Wrap(apperr.ErrUnauthorized, "invalid email or password")
	// ErrOTPNotFound no pending code for the challenge
	ErrOTPNotFound = errors.Wrap(apperr.ErrUnauthorized, "login code not found")
	// ErrOTPExpired the code expired and was removed
	ErrOTPExpired = errors.Wrap(apperr.ErrUnauthorized, "login code expired")
	// ErrOTPTooManyAttempts the code was removed after too many wrong attempts
	ErrOTPTooManyAttempts = errors.Wrap(apperr.ErrUnauthorized, "too many wrong login codes")
	// ErrOTPMismatch wrong code, attempts left
	ErrOTPMismatch = errors.Wrap(apperr.ErrUnauthorized, "wrong login code")
	// ErrOTPResendTooSoon a code was sent moments ago
	ErrOTPResendTooSoon = errors.Wrap(apperr.ErrRateLimited, "login code requested too often")
	// ErrSessionRevoked the token's session is no longer active
	ErrSessionRevoked = errors.Wrap(apperr.ErrUnauthorized, "session revoked")
	// ErrEmailTaken another user has the email
	ErrEmailTaken = errors.Wrap(apperr.ErrValidation, "email already registered")
	// ErrSelfAction admins cannot delete or lock themselves out
	ErrSelfAction = errors.Wrap(apperr.ErrValidation, "cannot apply to your own account")
)
