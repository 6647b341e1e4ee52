// Package retry wraps flaky reads with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/cenkalti/backoff/v5"

	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

const (
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
	defaultMaxTries        = 4
)

type config struct {
	initial, max time.Duration
	tries        uint
	logger       logSDK.Logger
	name         string
}

// Option configures Do
type Option func(*config)

// WithInitialInterval set the first delay
func WithInitialInterval(d time.Duration) Option {
	return func(c *config) { c.initial = d }
}

// WithMaxInterval cap every delay
func WithMaxInterval(d time.Duration) Option {
	return func(c *config) { c.max = d }
}

// WithMaxTries set total attempts, including the first one
func WithMaxTries(n uint) Option {
	return func(c *config) { c.tries = n }
}

// WithLogger set logger used for retry notices
func WithLogger(logger logSDK.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithName label the operation in logs
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// IsPermanent reports errors that never succeed on retry.
func IsPermanent(err error) bool {
	return docstore.IsNotFound(err) ||
		errors.Is(err, docstore.ErrAlreadyExists) ||
		errors.Is(err, context.Canceled) ||
		apperr.IsValidation(err)
}

// Do run op until it succeeds, returns a permanent error, or runs out of tries.
func Do[T any](ctx context.Context, op func() (T, error), opts ...Option) (T, error) {
	cfg := &config{
		initial: defaultInitialInterval,
		max:     defaultMaxInterval,
		tries:   defaultMaxTries,
		logger:  log.Logger,
		name:    "operation",
	}
	for _, f := range opts {
		f(cfg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.initial
	bo.MaxInterval = cfg.max
	bo.Multiplier = 2

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && IsPermanent(err) {
			return v, backoff.Permanent(err)
		}

		return v, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(cfg.tries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			cfg.logger.Warn("retry",
				zap.String("op", cfg.name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	return res, err
}

// Store retries the read side of a docstore.Store.
// Writes pass through untouched because they are not idempotent.
type Store struct {
	docstore.Store
	opts []Option
}

// NewStore wrap store
func NewStore(store docstore.Store, opts ...Option) *Store {
	return &Store{Store: store, opts: opts}
}

func (s *Store) withName(name string) []Option {
	return append([]Option{WithName(name)}, s.opts...)
}

// Get implements docstore.Store
func (s *Store) Get(ctx context.Context, coll, id string, dst any) error {
	_, err := Do(ctx, func() (struct{}, error) {
		return struct{}{}, s.Store.Get(ctx, coll, id, dst)
	}, s.withName("get "+coll)...)
	return err
}

// Find implements docstore.Store
func (s *Store) Find(ctx context.Context, q docstore.Query, dst any) error {
	_, err := Do(ctx, func() (struct{}, error) {
		return struct{}{}, s.Store.Find(ctx, q, dst)
	}, s.withName("find "+q.Collection)...)
	return err
}

// Count implements docstore.Store
func (s *Store) Count(ctx context.Context, q docstore.Query) (int, error) {
	return Do(ctx, func() (int, error) {
		return s.Store.Count(ctx, q)
	}, s.withName("count "+q.Collection)...)
}
