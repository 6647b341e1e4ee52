package service

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/jwt"
	"github.com/Laisky/agency-site/library/mail"
	"github.com/Laisky/agency-site/library/metrics"
)

const (
	stagePassword = "password"
	stageOTP      = "otp"
)

func recordAttempt(stage string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrUnauthorized):
		result = "rejected"
	case errors.Is(err, apperr.ErrRateLimited):
		result = "throttled"
	default:
		result = "error"
	}

	metrics.LoginAttempts.WithLabelValues(stage, result).Inc()
}

// Login checks email and password, then mails a one time code.
// The returned challenge id is the user id.
func (a *Auth) Login(ctx context.Context, in *dto.LoginInput) (challenge *dto.Challenge, err error) {
	defer func() { recordAttempt(stagePassword, err) }()

	user, err := a.dao.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if docstore.IsNotFound(err) {
			checkPassword(unknownUserHash(), in.Password)
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(user.PasswordHash, in.Password) || user.Disabled {
		return nil, model.ErrInvalidCredentials
	}

	if a.limiter != nil {
		ok, err := a.limiter.Allow(ctx, "otp/"+user.ID, 1, a.settings.ResendInterval)
		if err != nil {
			return nil, errors.Wrap(err, "throttle otp")
		}
		if !ok {
			return nil, model.ErrOTPResendTooSoon
		}
	}

	code, otp, err := a.issueOTP(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	msg, err := a.tpl.OTP(mail.Address{Name: user.Name, Email: user.Email}, code, a.settings.OTPTTL)
	if err != nil {
		return nil, errors.Wrap(err, "render otp mail")
	}
	err = a.mailer.Send(ctx, msg)
	metrics.RecordMail(msg.Tag, err)
	if err != nil {
		return nil, errors.Wrap(err, "send otp mail")
	}

	webutil.RequestLogger(ctx, a.logger).Info("login code sent", zap.String("user", user.ID))
	return &dto.Challenge{ChallengeID: user.ID, ExpiresAt: otp.ExpiresAt}, nil
}

// VerifyLogin checks the code of challenge and opens a session
func (a *Auth) VerifyLogin(ctx context.Context, in *dto.VerifyInput) (result *dto.LoginResult, err error) {
	defer func() { recordAttempt(stageOTP, err) }()

	code := strings.TrimSpace(in.Code)
	if in.ChallengeID == "" || len(code) != otpDigits {
		return nil, apperr.Validation("challenge_id and a %d digit code are required", otpDigits)
	}
	if err = a.verifyOTP(ctx, in.ChallengeID, code); err != nil {
		return nil, err
	}

	user, err := a.dao.GetUser(ctx, in.ChallengeID)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, model.ErrInvalidCredentials
	}

	sid := uuid.NewString()
	if err = a.sessions.Register(ctx, sid, user.ID, a.settings.SessionTTL); err != nil {
		return nil, errors.Wrap(err, "register session")
	}
	token, expiresAt, err := a.signer.Sign(user.ID, string(user.Role), sid, a.settings.SessionTTL)
	if err != nil {
		return nil, err
	}

	now := a.clock()
	user.LastLoginAt = &now
	if err = a.dao.DB().Update(ctx, model.CollUsers, user.ID, docstore.Set("last_login_at", now)); err != nil {
		webutil.RequestLogger(ctx, a.logger).Warn("update last login", zap.String("user", user.ID), zap.Error(err))
	}

	a.feed.Record(ctx, Actor(user), "user.login", "user", user.ID)
	return &dto.LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Actor converts user to the activity actor
func Actor(u *model.User) events.Actor {
	return events.Actor{ID: u.ID, Name: u.Name, Role: string(u.Role)}
}

// Authenticate resolves a token to its user. The session must still be
// active and the user enabled, the role is read from the user document.
func (a *Auth) Authenticate(ctx context.Context, token string) (*model.User, *jwt.UserClaims, error) {
	claims, err := a.signer.Parse(token)
	if err != nil {
		return nil, nil, apperr.Unauthorized("invalid token: %v", err)
	}

	active, err := a.sessions.IsActive(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "check session")
	}
	if !active {
		return nil, nil, model.ErrSessionRevoked
	}

	user, err := a.dao.GetUser(ctx, claims.Subject)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, nil, model.ErrSessionRevoked
		}
		return nil, nil, err
	}
	if user.Disabled {
		return nil, nil, model.ErrSessionRevoked
	}

	return user, claims, nil
}

// Logout revoke the session
func (a *Auth) Logout(ctx context.Context, actor events.Actor, sid string) error {
	if err := a.sessions.Revoke(ctx, sid); err != nil {
		return errors.Wrap(err, "revoke session")
	}

	a.feed.Record(ctx, actor, "user.logout", "user", actor.ID)
	return nil
}
