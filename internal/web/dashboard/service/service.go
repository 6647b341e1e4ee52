// Package service stores dashboard notifications and the activity log.
//
// Dashboard implements events.Feed, so every other service reports to it
// without importing it. Feed writes are best effort: a failure is logged and
// never fails the operation that produced the event.
package service

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/internal/web/dashboard/model"
	"github.com/Laisky/agency-site/library"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

const (
	// DefaultLimit of list operations
	DefaultLimit = 20
	// MaxLimit of list operations
	MaxLimit = 100

	markBatch    = 200
	maxTitleLen  = 200
	maxBodyLen   = 1000
	writeTimeout = 5 * time.Second
)

// Dashboard service
type Dashboard struct {
	logger logSDK.Logger
	db     docstore.Store
	clock  func() time.Time
}

var _ events.Feed = (*Dashboard)(nil)

// New create dashboard service
func New(logger logSDK.Logger, db docstore.Store) *Dashboard {
	if logger == nil {
		logger = log.Logger.Named("dashboard_service")
	}

	return &Dashboard{
		logger: logger,
		db:     db,
		clock:  gutils.Clock.GetUTCNow,
	}
}

// detached keeps request values for logging but survives the request ending
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

// Notify implements events.Feed
func (d *Dashboard) Notify(ctx context.Context, kind, title, body, link string) {
	n := &model.Notification{
		ID:        gutils.UUID7(),
		Kind:      kind,
		Title:     library.Truncate(title, maxTitleLen),
		Body:      library.Truncate(body, maxBodyLen),
		Link:      link,
		CreatedAt: d.clock(),
	}

	wctx, cancel := detached(ctx)
	defer cancel()
	if err := d.db.Create(wctx, model.CollNotifications, n.ID, n); err != nil {
		webutil.RequestLogger(ctx, d.logger).Warn("save notification",
			zap.String("kind", kind), zap.Error(err))
	}
}

// Record implements events.Feed
func (d *Dashboard) Record(ctx context.Context, actor events.Actor, action, target, targetID string) {
	a := &model.Activity{
		ID:        gutils.UUID7(),
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Target:    target,
		TargetID:  targetID,
		CreatedAt: d.clock(),
	}

	wctx, cancel := detached(ctx)
	defer cancel()
	if err := d.db.Create(wctx, model.CollActivities, a.ID, a); err != nil {
		webutil.RequestLogger(ctx, d.logger).Warn("save activity",
			zap.String("action", action), zap.Error(err))
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Notifications newest first
func (d *Dashboard) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]*model.Notification, error) {
	q := docstore.NewQuery(model.CollNotifications)
	if unreadOnly {
		q = q.Where("read", docstore.OpEq, false)
	}

	items := []*model.Notification{}
	if err := d.db.Find(ctx, q.OrderBy("created_at", docstore.Desc).
		WithLimit(clampLimit(limit)), &items); err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}

	return items, nil
}

// UnreadCount number of unread notifications
func (d *Dashboard) UnreadCount(ctx context.Context) (int, error) {
	n, err := d.db.Count(ctx, docstore.NewQuery(model.CollNotifications).
		Where("read", docstore.OpEq, false))
	if err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}

	return n, nil
}

// MarkRead mark notification id as read
func (d *Dashboard) MarkRead(ctx context.Context, id string) error {
	if err := d.db.Update(ctx, model.CollNotifications, id,
		docstore.Set("read", true)); err != nil {
		return errors.Wrapf(err, "mark notification `%s` read", id)
	}

	return nil
}

// MarkAllRead mark every unread notification as read, returns how many changed
func (d *Dashboard) MarkAllRead(ctx context.Context) (total int, err error) {
	for {
		var n int
		if err = d.db.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			var unread []*model.Notification
			if err := tx.Find(docstore.NewQuery(model.CollNotifications).
				Where("read", docstore.OpEq, false).
				WithLimit(markBatch), &unread); err != nil {
				return errors.Wrap(err, "find unread notifications")
			}

			n = len(unread)
			for _, item := range unread {
				if err := tx.Update(model.CollNotifications, item.ID, docstore.Set("read", true)); err != nil {
					return errors.Wrapf(err, "mark notification `%s` read", item.ID)
				}
			}

			return nil
		}); err != nil {
			return total, errors.Wrap(err, "mark all read")
		}

		total += n
		if n < markBatch {
			return total, nil
		}
	}
}

// Activities newest first
func (d *Dashboard) Activities(ctx context.Context, limit int) ([]*model.Activity, error) {
	items := []*model.Activity{}
	if err := d.db.Find(ctx, docstore.NewQuery(model.CollActivities).
		OrderBy("created_at", docstore.Desc).
		WithLimit(clampLimit(limit)), &items); err != nil {
		return nil, errors.Wrap(err, "list activities")
	}

	return items, nil
}

// Watch streams notifications as they are created or change until ctx is done.
// Removed notifications are not reported.
func (d *Dashboard) Watch(ctx context.Context) (<-chan *model.Notification, error) {
	changes, err := d.db.Watch(ctx, model.CollNotifications)
	if err != nil {
		return nil, errors.Wrap(err, "watch notifications")
	}

	out := make(chan *model.Notification)
	go func() {
		defer close(out)
		for change := range changes {
			if change.Kind == docstore.ChangeRemoved {
				continue
			}

			n := new(model.Notification)
			if err := d.db.Get(ctx, model.CollNotifications, change.ID, n); err != nil {
				if !docstore.IsNotFound(err) && ctx.Err() == nil {
					d.logger.Warn("load watched notification",
						zap.String("notification", change.ID), zap.Error(err))
				}
				continue
			}

			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
