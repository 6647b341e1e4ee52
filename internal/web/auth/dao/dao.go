// Package dao contains the data access object of the dashboard users.
package dao

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"

	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

// Auth dao type
type Auth struct {
	logger logSDK.Logger
	db     docstore.Store
}

// New create new dao
func New(logger logSDK.Logger, db docstore.Store) *Auth {
	return &Auth{
		logger: logger,
		db:     db,
	}
}

// DB returns the underlying store
func (d *Auth) DB() docstore.Store {
	return d.db
}

// GetUser load user by id
func (d *Auth) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := new(model.User)
	if err := d.db.Get(ctx, model.CollUsers, id, u); err != nil {
		return nil, errors.Wrapf(err, "get user `%s`", id)
	}

	return u, nil
}

// UsersByEmailQuery matches the normalized email
func UsersByEmailQuery(email string) docstore.Query {
	return docstore.NewQuery(model.CollUsers).
		Where("email", docstore.OpEq, strings.ToLower(email)).
		WithLimit(1)
}

// GetUserByEmail load user by email
func (d *Auth) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var users []*model.User
	if err := d.db.Find(ctx, UsersByEmailQuery(email), &users); err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	if len(users) == 0 {
		return nil, errors.Wrapf(docstore.ErrNotFound, "user `%s`", email)
	}

	return users[0], nil
}

// ListUsers all users, oldest first
func (d *Auth) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := d.db.Find(ctx, docstore.NewQuery(model.CollUsers).
		OrderBy("created_at", docstore.Asc), &users); err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	return users, nil
}
