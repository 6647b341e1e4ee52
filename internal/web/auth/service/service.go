// Package service implements dashboard users, OTP login and sessions.
package service

import (
	"context"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/auth/dao"
	"github.com/Laisky/agency-site/library/jwt"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/mail"
)

// Limiter allows at most limit events per key in window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Clock returns the current time
type Clock func() time.Time

// Settings of the login flow
type Settings struct {
	OTPTTL         time.Duration
	OTPMaxAttempts int64
	ResendInterval time.Duration
	SessionTTL     time.Duration
}

// DefaultSettings 5 minute codes, 3 attempts, one code per minute, 24h sessions
func DefaultSettings() Settings {
	return Settings{
		OTPTTL:         5 * time.Minute,
		OTPMaxAttempts: 3,
		ResendInterval: time.Minute,
		SessionTTL:     24 * time.Hour,
	}
}

// SettingsFromConfig reads `settings.auth.*`, unset or malformed keys keep the defaults
func SettingsFromConfig(logger logSDK.Logger) Settings {
	st := DefaultSettings()
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"settings.auth.otp.ttl", &st.OTPTTL},
		{"settings.auth.otp.resend_interval", &st.ResendInterval},
		{"settings.auth.session_ttl", &st.SessionTTL},
	}
	for _, d := range durations {
		raw := gconfig.Shared.GetString(d.key)
		if raw == "" {
			continue
		}

		v, err := time.ParseDuration(raw)
		if err != nil || v <= 0 {
			logger.Warn("ignore invalid duration", zap.String("key", d.key), zap.String("value", raw))
			continue
		}
		*d.dst = v
	}

	if n := gconfig.Shared.GetInt("settings.auth.otp.max_attempts"); n > 0 {
		st.OTPMaxAttempts = int64(n)
	}

	return st
}

// Auth service
type Auth struct {
	logger   logSDK.Logger
	dao      *dao.Auth
	signer   *jwt.Signer
	sessions SessionStore
	limiter  Limiter
	mailer   mail.Sender
	tpl      *mail.Templates
	feed     events.Feed
	clock    Clock
	settings Settings
}

// Option configures Auth
type Option func(*Auth)

// WithSessions keep sessions somewhere else than the document store
func WithSessions(sessions SessionStore) Option {
	return func(a *Auth) { a.sessions = sessions }
}

// WithLimiter throttles code resends
func WithLimiter(limiter Limiter) Option {
	return func(a *Auth) { a.limiter = limiter }
}

// WithMailer delivers login codes
func WithMailer(sender mail.Sender, tpl *mail.Templates) Option {
	return func(a *Auth) {
		a.mailer = sender
		a.tpl = tpl
	}
}

// WithFeed records logins in the activity feed
func WithFeed(feed events.Feed) Option {
	return func(a *Auth) { a.feed = feed }
}

// WithClock override time source
func WithClock(clock Clock) Option {
	return func(a *Auth) { a.clock = clock }
}

// WithSettings override login settings
func WithSettings(st Settings) Option {
	return func(a *Auth) { a.settings = st }
}

// New create auth service
func New(logger logSDK.Logger, dao *dao.Auth, signer *jwt.Signer, opts ...Option) *Auth {
	if logger == nil {
		logger = log.Logger.Named("auth_service")
	}

	a := &Auth{
		logger:   logger,
		dao:      dao,
		signer:   signer,
		feed:     events.Nop{},
		clock:    gutils.Clock.GetUTCNow,
		settings: DefaultSettings(),
		mailer:   mail.NewLog(logger, nil),
		tpl:      mail.NewTemplatesFromConfig(),
	}
	for _, f := range opts {
		f(a)
	}

	if a.sessions == nil {
		a.sessions = NewDocSessions(dao.DB(), a.clock)
	}

	return a
}
