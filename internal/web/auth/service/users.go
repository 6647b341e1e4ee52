package service

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/auth/dao"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/mail"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything after 72 bytes
	maxPasswordLen = 72
	maxUserNameLen = 100
)

func validatePassword(pwd string) error {
	switch {
	case utf8.RuneCountInString(pwd) < minPasswordLen:
		return apperr.Validation("password must have at least %d characters", minPasswordLen)
	case len(pwd) > maxPasswordLen:
		return apperr.Validation("password too long, at most %d bytes", maxPasswordLen)
	}

	return nil
}

func hashPassword(pwd string) (string, error) {
	if err := validatePassword(pwd); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}

	return string(hash), nil
}

var comparePassword = bcrypt.CompareHashAndPassword

// unknownUserHash is compared against when the email has no account,
// so both branches of a login pay for one bcrypt comparison.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(gutils.UUID7()), bcrypt.DefaultCost)
	if err != nil {
		panic(errors.Wrap(err, "hash placeholder password"))
	}

	return string(hash)
})

func checkPassword(hash, pwd string) bool {
	return comparePassword([]byte(hash), []byte(pwd)) == nil
}

// CreateUser register a dashboard user, email must be unused
func (a *Auth) CreateUser(ctx context.Context, actor events.Actor, in *dto.UserInput) (*model.User, error) {
	email, err := mail.ValidAddress(in.Email)
	if err != nil {
		return nil, apperr.Validation("invalid email: %v", err)
	}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, apperr.Validation("name is required")
	case utf8.RuneCountInString(name) > maxUserNameLen:
		return nil, apperr.Validation("name too long, at most %d characters", maxUserNameLen)
	}

	role := in.Role
	if role == "" {
		role = model.RoleViewer
	}
	if !role.Valid() {
		return nil, apperr.Validation("unknown role `%s`", role)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := a.clock()
	user := &model.User{
		ID:           gutils.UUID7(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err = a.dao.DB().RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var exists []*model.User
		if err := tx.Find(dao.UsersByEmailQuery(email), &exists); err != nil {
			return errors.Wrap(err, "check email")
		}
		if len(exists) != 0 {
			return errors.Wrapf(model.ErrEmailTaken, "email `%s`", email)
		}

		return tx.Create(model.CollUsers, user.ID, user)
	}); err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	webutil.RequestLogger(ctx, a.logger).Info("user created",
		zap.String("user", user.ID), zap.String("role", string(role)))
	a.feed.Record(ctx, actor, "user.create", "user", user.ID)
	return user, nil
}

// ListUsers all dashboard users
func (a *Auth) ListUsers(ctx context.Context) ([]*model.User, error) {
	return a.dao.ListUsers(ctx)
}

// Me load the user behind the session
func (a *Auth) Me(ctx context.Context, uid string) (*model.User, error) {
	return a.dao.GetUser(ctx, uid)
}

// UpdateUser change role or disabled flag. Disabling revokes every session of the user.
func (a *Auth) UpdateUser(ctx context.Context, actor events.Actor, id string, in *dto.UserUpdate) (*model.User, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, apperr.Validation("unknown role `%s`", *in.Role)
	}
	if id == actor.ID {
		if (in.Disabled != nil && *in.Disabled) || (in.Role != nil && *in.Role != model.RoleAdmin) {
			return nil, errors.Wrap(model.ErrSelfAction, "disable or demote")
		}
	}

	user, err := a.dao.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := []docstore.Update{docstore.Set("updated_at", a.clock())}
	if in.Role != nil {
		user.Role = *in.Role
		updates = append(updates, docstore.Set("role", string(*in.Role)))
	}
	if in.Disabled != nil {
		user.Disabled = *in.Disabled
		updates = append(updates, docstore.Set("disabled", *in.Disabled))
	}
	if err = a.dao.DB().Update(ctx, model.CollUsers, id, updates...); err != nil {
		return nil, errors.Wrapf(err, "update user `%s`", id)
	}

	if user.Disabled {
		if err = a.sessions.RevokeAll(ctx, id); err != nil {
			return nil, errors.Wrapf(err, "revoke sessions of `%s`", id)
		}
	}

	a.feed.Record(ctx, actor, "user.update", "user", id)
	return user, nil
}

// DeleteUser remove a user and its sessions, users cannot delete themselves
func (a *Auth) DeleteUser(ctx context.Context, actor events.Actor, id string) error {
	if id == actor.ID {
		return errors.Wrap(model.ErrSelfAction, "delete")
	}
	if _, err := a.dao.GetUser(ctx, id); err != nil {
		return err
	}

	if err := a.sessions.RevokeAll(ctx, id); err != nil {
		return errors.Wrapf(err, "revoke sessions of `%s`", id)
	}
	if err := a.dao.DB().Delete(ctx, model.CollOTPs, id); err != nil {
		return errors.Wrapf(err, "delete otp of `%s`", id)
	}
	if err := a.dao.DB().Delete(ctx, model.CollUsers, id); err != nil {
		return errors.Wrapf(err, "delete user `%s`", id)
	}

	a.feed.Record(ctx, actor, "user.delete", "user", id)
	return nil
}

// ChangePassword check the old password, store the new one and revoke every
// other session of the user
func (a *Auth) ChangePassword(ctx context.Context, actor events.Actor, sid string, in *dto.PasswordInput) error {
	user, err := a.dao.GetUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, in.OldPassword) {
		return model.ErrInvalidCredentials
	}

	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err = a.dao.DB().Update(ctx, model.CollUsers, user.ID,
		docstore.Set("password_hash", hash),
		docstore.Set("updated_at", a.clock()),
	); err != nil {
		return errors.Wrapf(err, "update password of `%s`", user.ID)
	}

	if err = a.sessions.RevokeAll(ctx, user.ID, sid); err != nil {
		return errors.Wrapf(err, "revoke sessions of `%s`", user.ID)
	}

	a.feed.Record(ctx, actor, "user.password", "user", user.ID)
	return nil
}
