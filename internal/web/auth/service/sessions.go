package service

import (
	"context"
	"slices"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

// SessionStore tracks which issued tokens are still valid
type SessionStore interface {
	Register(ctx context.Context, sid, uid string, ttl time.Duration) error
	IsActive(ctx context.Context, sid string) (bool, error)
	Revoke(ctx context.Context, sid string) error
	// RevokeAll revokes every session of uid except keep
	RevokeAll(ctx context.Context, uid string, keep ...string) error
}

// DocSessions keeps sessions in the document store
type DocSessions struct {
	db    docstore.Store
	clock Clock
}

// NewDocSessions create document store backed sessions
func NewDocSessions(db docstore.Store, clock Clock) *DocSessions {
	return &DocSessions{db: db, clock: clock}
}

// Register implements SessionStore
func (s *DocSessions) Register(ctx context.Context, sid, uid string, ttl time.Duration) error {
	now := s.clock()
	if err := s.db.Set(ctx, model.CollSessions, sid, &model.Session{
		ID:        sid,
		UserID:    uid,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return errors.Wrapf(err, "save session `%s`", sid)
	}

	return nil
}

// IsActive implements SessionStore
func (s *DocSessions) IsActive(ctx context.Context, sid string) (bool, error) {
	sess := new(model.Session)
	if err := s.db.Get(ctx, model.CollSessions, sid, sess); err != nil {
		if docstore.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "get session `%s`", sid)
	}

	return s.clock().Before(sess.ExpiresAt), nil
}

// Revoke implements SessionStore
func (s *DocSessions) Revoke(ctx context.Context, sid string) error {
	if err := s.db.Delete(ctx, model.CollSessions, sid); err != nil {
		return errors.Wrapf(err, "delete session `%s`", sid)
	}

	return nil
}

// RevokeAll implements SessionStore, expired sessions are dropped on the way
func (s *DocSessions) RevokeAll(ctx context.Context, uid string, keep ...string) error {
	var sessions []*model.Session
	if err := s.db.Find(ctx, docstore.NewQuery(model.CollSessions).
		Where("user_id", docstore.OpEq, uid), &sessions); err != nil {
		return errors.Wrapf(err, "find sessions of `%s`", uid)
	}

	for _, sess := range sessions {
		if slices.Contains(keep, sess.ID) {
			continue
		}
		if err := s.db.Delete(ctx, model.CollSessions, sess.ID); err != nil {
			return errors.Wrapf(err, "delete session `%s`", sess.ID)
		}
	}

	return nil
}
