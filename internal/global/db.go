// Package global builds the backends and services shared by the commands
package global

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/Laisky/agency-site/library/config"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/db/firestore"
	"github.com/Laisky/agency-site/library/db/mongo"
	rdb "github.com/Laisky/agency-site/library/db/redis"
	"github.com/Laisky/agency-site/library/log"
	"github.com/Laisky/agency-site/library/retry"
)

// Store backends accepted by `settings.db.backend`
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

// Backends are the storage connections of one process
type Backends struct {
	Store docstore.Store
	// Redis is nil when `settings.db.redis.addr` is empty
	Redis *rdb.DB
}

// SetupDB connects the document store and the optional redis
func SetupDB(ctx context.Context) (*Backends, error) {
	store, err := newStore(ctx, strings.ToLower(gconfig.Shared.GetString("settings.db.backend")))
	if err != nil {
		return nil, err
	}

	b := &Backends{
		Store: retry.NewStore(store, retry.WithLogger(log.Logger.Named("store_retry"))),
	}
	if addr := gconfig.Shared.GetString("settings.db.redis.addr"); addr != "" {
		b.Redis = rdb.NewDB(&redis.Options{
			Addr:     addr,
			Password: gconfig.Shared.GetString("settings.db.redis.pwd"),
			DB:       gconfig.Shared.GetInt("settings.db.redis.db"),
		})
		if err = b.Redis.Ping(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, errors.Wrapf(err, "connect redis `%s`", addr)
		}

		log.Logger.Info("connected redis", zap.String("addr", addr))
	}

	return b, nil
}

func newStore(ctx context.Context, backend string) (docstore.Store, error) {
	switch backend {
	case BackendFirestore:
		projectID := gconfig.Shared.GetString("settings.db.firestore.project_id")
		var opts []option.ClientOption
		if cred := gconfig.Shared.GetString("settings.db.firestore.credential_file"); cred != "" {
			opts = append(opts, option.WithCredentialsFile(config.ResolvePath(cred)))
		}

		db, err := firestore.NewDB(ctx, projectID, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "connect firestore `%s`", projectID)
		}

		log.Logger.Info("connected gcp firestore", zap.String("project", projectID))
		return db, nil
	case BackendMongo:
		dialInfo := mongo.DialInfo{
			Addr:   gconfig.Shared.GetString("settings.db.mongo.addr"),
			DBName: gconfig.Shared.GetString("settings.db.mongo.db"),
			User:   gconfig.Shared.GetString("settings.db.mongo.user"),
			Pwd:    gconfig.Shared.GetString("settings.db.mongo.pwd"),
			AuthDB: gconfig.Shared.GetString("settings.db.mongo.auth_db"),
		}
		db, err := mongo.NewStore(ctx, dialInfo)
		if err != nil {
			return nil, errors.Wrapf(err, "connect mongo `%s`", dialInfo.Addr)
		}

		log.Logger.Info("connected mongodb", zap.String("addr", dialInfo.Addr))
		return db, nil
	case BackendMemory, "":
		log.Logger.Warn("using in-memory document store, data is lost on exit")
		return docstore.NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown db backend `%s`", backend)
	}
}

// Close releases every backend
func (b *Backends) Close(ctx context.Context) {
	if err := b.Store.Close(ctx); err != nil {
		log.Logger.Warn("close store", zap.Error(err))
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			log.Logger.Warn("close redis", zap.Error(err))
		}
	}
}
