package controller

import (
	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/apperr"
)

const loginFailedMessage = "login failed"

// loginSafeErrors may reach the client unchanged
var loginSafeErrors = []error{
	model.ErrInvalidCredentials,
	model.ErrOTPNotFound,
	model.ErrOTPExpired,
	model.ErrOTPTooManyAttempts,
	model.ErrOTPMismatch,
	model.ErrOTPResendTooSoon,
}

// maskLoginError returns a sanitized login error for client responses.
// Known login outcomes and validation errors pass through, anything else
// becomes a generic failure.
func maskLoginError(err error) error {
	if err == nil {
		return nil
	}

	for _, safe := range loginSafeErrors {
		if errors.Is(err, safe) {
			return errors.WithStack(safe)
		}
	}
	if apperr.IsValidation(err) {
		return err
	}

	return errors.Wrap(apperr.ErrUnauthorized, loginFailedMessage)
}
