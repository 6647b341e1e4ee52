// Package redis keeps sessions, rate limit counters and outboxes in redis.
package redis

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gredis "github.com/Laisky/go-redis/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"

	"github.com/Laisky/agency-site/library/log"
)

// DB is a wrapper for go-redis
type DB struct {
	rdb   *redis.Client
	utils *gredis.Utils
}

// NewDB creates a new DB instance
func NewDB(opt *redis.Options) *DB {
	rdb := redis.NewClient(opt)
	return &DB{
		rdb:   rdb,
		utils: gredis.NewRedisUtils(rdb),
	}
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return errors.Wrap(db.rdb.Ping(ctx).Err(), "ping redis")
}

// Close the client
func (db *DB) Close() error {
	return db.rdb.Close()
}

// Register marks session sid of user uid as active for ttl
func (db *DB) Register(ctx context.Context, sid, uid string, ttl time.Duration) error {
	userKey := keyPrefixUserSessions + uid
	_, err := db.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefixSession+sid, uid, ttl)
		pipe.SAdd(ctx, userKey, sid)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})

	return errors.Wrapf(err, "register session for user %s", uid)
}

// IsActive reports whether sid is registered and not revoked
func (db *DB) IsActive(ctx context.Context, sid string) (bool, error) {
	n, err := db.rdb.Exists(ctx, keyPrefixSession+sid).Result()
	if err != nil {
		return false, errors.Wrap(err, "check session")
	}

	return n == 1, nil
}

// Revoke drops one session
func (db *DB) Revoke(ctx context.Context, sid string) error {
	uid, err := db.rdb.Get(ctx, keyPrefixSession+sid).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return errors.Wrap(err, "load session")
	}

	_, err = db.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyPrefixSession+sid)
		pipe.SRem(ctx, keyPrefixUserSessions+uid, sid)
		return nil
	})

	return errors.Wrap(err, "revoke session")
}

// RevokeAll drops every session of uid except the ones listed in keep
func (db *DB) RevokeAll(ctx context.Context, uid string, keep ...string) error {
	userKey := keyPrefixUserSessions + uid
	sids, err := db.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return errors.Wrap(err, "list sessions")
	}

	kept := make(map[string]bool, len(keep))
	for _, sid := range keep {
		kept[sid] = true
	}

	_, err = db.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range sids {
			if kept[sid] {
				continue
			}
			pipe.Del(ctx, keyPrefixSession+sid)
			pipe.SRem(ctx, userKey, sid)
		}
		return nil
	})

	return errors.Wrapf(err, "revoke sessions of user %s", uid)
}

// Allow is a fixed window counter: at most limit events per window for key
func (db *DB) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	rkey := keyPrefixRateLimit + key
	n, err := db.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return false, errors.Wrap(err, "incr rate limit")
	}
	if n == 1 {
		if err = db.rdb.Expire(ctx, rkey, window).Err(); err != nil {
			return false, errors.Wrap(err, "expire rate limit")
		}
	}

	return n <= int64(limit), nil
}

// PushOutbox appends payload as one JSON item to the list at key.
// The list is never trimmed, consumers pop what they handled.
func (db *DB) PushOutbox(ctx context.Context, key string, payload any) error {
	data, err := gutils.JSON.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal outbox payload")
	}

	if err = db.rdb.RPush(ctx, key, data).Err(); err != nil {
		return errors.Wrapf(err, "rpush %s", key)
	}

	return nil
}

// TryLock acquires the cluster wide maintenance lock name without blocking.
// ok is false when another process holds it. The lock is kept alive until
// unlock is called.
func (db *DB) TryLock(ctx context.Context, name string) (ok bool, unlock func(), err error) {
	mu, err := db.utils.NewMutex(keyPrefixLock+name,
		gredis.WithMutexBlockingLock(false),
		gredis.WithMutexTTL(lockTTL),
	)
	if err != nil {
		return false, nil, errors.Wrapf(err, "new mutex %s", name)
	}

	ok, _, err = mu.Lock(ctx)
	if err != nil {
		return false, nil, errors.Wrapf(err, "lock %s", name)
	}
	if !ok {
		return false, nil, nil
	}

	return true, func() {
		if err := mu.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.Logger.Warn("unlock", zap.String("lock", name), zap.Error(err))
		}
	}, nil
}
