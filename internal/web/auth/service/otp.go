package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// newOTPCode returns a uniformly random 6 digit code
func newOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", errors.Wrap(err, "generate otp")
	}

	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func hashOTP(uid, code string) string {
	sum := sha256.Sum256([]byte(uid + ":" + code))
	return hex.EncodeToString(sum[:])
}

// issueOTP replaces any pending code of uid and returns the new plain code
func (a *Auth) issueOTP(ctx context.Context, uid string) (code string, otp *model.OTP, err error) {
	if code, err = newOTPCode(); err != nil {
		return "", nil, err
	}

	now := a.clock()
	otp = &model.OTP{
		ID:        uid,
		CodeHash:  hashOTP(uid, code),
		ExpiresAt: now.Add(a.settings.OTPTTL),
		CreatedAt: now,
	}
	if err = a.dao.DB().Set(ctx, model.CollOTPs, uid, otp); err != nil {
		return "", nil, errors.Wrapf(err, "save otp of `%s`", uid)
	}

	return code, otp, nil
}

// verifyOTP checks code against the pending code of uid.
// The check and the attempt counter run in one transaction, so concurrent
// guesses cannot exceed the attempt limit.
func (a *Auth) verifyOTP(ctx context.Context, uid, code string) error {
	var verdict error
	err := a.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		verdict = nil
		otp := new(model.OTP)
		if err := tx.Get(model.CollOTPs, uid, otp); err != nil {
			if docstore.IsNotFound(err) {
				verdict = model.ErrOTPNotFound
				return nil
			}
			return errors.Wrap(err, "get otp")
		}

		if !a.clock().Before(otp.ExpiresAt) {
			verdict = model.ErrOTPExpired
			return tx.Delete(model.CollOTPs, uid)
		}

		if subtle.ConstantTimeCompare([]byte(otp.CodeHash), []byte(hashOTP(uid, code))) == 1 {
			return tx.Delete(model.CollOTPs, uid)
		}

		if otp.Attempts+1 >= a.settings.OTPMaxAttempts {
			verdict = model.ErrOTPTooManyAttempts
			return tx.Delete(model.CollOTPs, uid)
		}

		verdict = model.ErrOTPMismatch
		return tx.Update(model.CollOTPs, uid, docstore.Increment("attempts", 1))
	})
	if err != nil {
		return errors.Wrapf(err, "verify otp of `%s`", uid)
	}

	return verdict
}
