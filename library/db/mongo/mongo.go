// Package mongo is the MongoDB backend of docstore.
package mongo

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Laisky/agency-site/library/log"
)

const (
	defaultTimeout      = 30 * time.Second
	healthCheckInterval = 5 * time.Second
	defaultHeartbeat    = 10 * time.Second
)

// DialInfo defines the MongoDB connection information.
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	AuthDB string
}

// client owns one long-lived mongo.Client and its health checker.
type client struct {
	mu     sync.RWMutex
	cli    *mongo.Client
	addr   string
	cancel context.CancelFunc
}

var (
	connectMongo = func(ctx context.Context, clientOpts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(ctx, clientOpts)
	}
	pingMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Ping(ctx, readpref.Primary())
	}
	disconnectMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Disconnect(ctx)
	}
)

// buildMongoURI builds a MongoDB connection URI from the given dial info.
func buildMongoURI(dialInfo DialInfo) string {
	uri := &url.URL{
		Scheme: "mongodb",
		Host:   dialInfo.Addr,
		Path:   "/" + dialInfo.DBName,
	}
	if dialInfo.User != "" || dialInfo.Pwd != "" {
		uri.User = url.UserPassword(dialInfo.User, dialInfo.Pwd)
	}
	if dialInfo.AuthDB != "" {
		query := url.Values{}
		query.Set("authSource", dialInfo.AuthDB)
		uri.RawQuery = query.Encode()
	}

	return uri.String()
}

// dial connects and pings once, so a bad address fails at startup.
// Reconnects afterwards are left to the driver.
func dial(ctx context.Context, dialInfo DialInfo) (*client, error) {
	log.Logger.Info("try to connect to mongodb",
		zap.String("addr", dialInfo.Addr),
		zap.String("db", dialInfo.DBName),
	)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(buildMongoURI(dialInfo)).
		SetConnectTimeout(defaultTimeout).
		SetServerSelectionTimeout(defaultTimeout).
		SetHeartbeatInterval(defaultHeartbeat).
		SetRetryReads(true).
		SetRetryWrites(true).
		SetMaxPoolSize(50).
		SetMaxConnIdleTime(5 * time.Minute)

	cli, err := connectMongo(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect db")
	}

	if err := pingMongo(ctx, cli); err != nil {
		_ = disconnectMongo(context.Background(), cli)
		return nil, errors.Wrap(err, "ping db")
	}

	c := &client{cli: cli, addr: dialInfo.Addr}
	hctx, hcancel := context.WithCancel(context.Background())
	c.cancel = hcancel
	go c.runHealthCheck(hctx)

	return c, nil
}

// runHealthCheck only logs when the server is unreachable.
func (c *client) runHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cli := c.client()
		if cli == nil {
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pingMongo(pingCtx, cli)
		cancel()
		if err != nil && ctx.Err() == nil {
			log.Logger.Warn("mongodb ping failed",
				zap.Error(err),
				zap.String("addr", c.addr),
			)
		}
	}
}

func (c *client) client() *mongo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cli
}

// close stops the health checker and disconnects.
func (c *client) close(ctx context.Context) error {
	c.cancel()

	c.mu.Lock()
	cli := c.cli
	c.cli = nil
	c.mu.Unlock()
	if cli == nil {
		return nil
	}

	closeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return errors.Wrap(disconnectMongo(closeCtx, cli), "disconnect")
}
