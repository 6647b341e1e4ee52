// Package service is the service layer of blog.
package service

import (
	"time"

	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/blog/dao"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
)

// DefaultMaxThreadDepth deepest reply level walked by Thread
const DefaultMaxThreadDepth = 32

// Clock returns the current time
type Clock func() time.Time

// Blog blog service
type Blog struct {
	logger         logSDK.Logger
	dao            *dao.Blog
	feed           events.Feed
	mailer         mail.Sender
	tpl            *mail.Templates
	clock          Clock
	maxThreadDepth int
}

// Option configures Blog
type Option func(*Blog)

// WithFeed send notifications and activities to feed
func WithFeed(feed events.Feed) Option {
	return func(b *Blog) { b.feed = feed }
}

// WithMailer mail reply notices to commenters
func WithMailer(sender mail.Sender, tpl *mail.Templates) Option {
	return func(b *Blog) {
		b.mailer = sender
		b.tpl = tpl
	}
}

// WithClock override time source
func WithClock(clock Clock) Option {
	return func(b *Blog) { b.clock = clock }
}

// WithMaxThreadDepth override DefaultMaxThreadDepth
func WithMaxThreadDepth(depth int) Option {
	return func(b *Blog) { b.maxThreadDepth = depth }
}

// New new blog service
func New(logger logSDK.Logger, dao *dao.Blog, opts ...Option) *Blog {
	if logger == nil {
		logger = log.Logger.Named("blog_service")
	}

	b := &Blog{
		logger:         logger,
		dao:            dao,
		feed:           events.Nop{},
		clock:          gutils.Clock.GetUTCNow,
		maxThreadDepth: DefaultMaxThreadDepth,
	}
	for _, f := range opts {
		f(b)
	}

	return b
}
