package mongo

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

const watchBuffer = 64

// Store implements docstore.Store on one mongo database.
// Document ids are stored as `_id`. Transactions need a replica set.
type Store struct {
	cli *client
	db  *mongo.Database
}

// NewStore connect to mongo and return a docstore backend
func NewStore(ctx context.Context, dialInfo DialInfo) (*Store, error) {
	cli, err := dial(ctx, dialInfo)
	if err != nil {
		return nil, errors.Wrap(err, "dial mongo")
	}

	return &Store{
		cli: cli,
		db:  cli.client().Database(dialInfo.DBName),
	}, nil
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) get(ctx context.Context, coll, id string, dst any) error {
	err := s.col(coll).FindOne(ctx, byID(id)).Decode(dst)
	return translateErr(err, "get %s/%s", coll, id)
}

func (s *Store) find(ctx context.Context, q docstore.Query, dst any) error {
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return err
	}

	cur, err := s.col(q.Collection).Find(ctx, filter, findOptions(q))
	if err != nil {
		return errors.Wrapf(err, "find %s", q.Collection)
	}

	return errors.Wrapf(cur.All(ctx, dst), "decode %s", q.Collection)
}

func (s *Store) create(ctx context.Context, coll, id string, doc any) error {
	d, err := withID(id, doc)
	if err != nil {
		return err
	}

	_, err = s.col(coll).InsertOne(ctx, d)
	return translateErr(err, "create %s/%s", coll, id)
}

func (s *Store) set(ctx context.Context, coll, id string, doc any) error {
	d, err := withID(id, doc)
	if err != nil {
		return err
	}

	_, err = s.col(coll).ReplaceOne(ctx, byID(id), d, options.Replace().SetUpsert(true))
	return translateErr(err, "set %s/%s", coll, id)
}

func (s *Store) update(ctx context.Context, coll, id string, updates []docstore.Update) error {
	upd, err := buildUpdate(updates)
	if err != nil {
		return err
	}

	ret, err := s.col(coll).UpdateOne(ctx, byID(id), upd)
	if err != nil {
		return translateErr(err, "update %s/%s", coll, id)
	}
	if ret.MatchedCount == 0 {
		return errors.Wrapf(docstore.ErrNotFound, "update %s/%s", coll, id)
	}

	return nil
}

func (s *Store) delete(ctx context.Context, coll, id string) error {
	_, err := s.col(coll).DeleteOne(ctx, byID(id))
	return translateErr(err, "delete %s/%s", coll, id)
}

// Get implements docstore.Store
func (s *Store) Get(ctx context.Context, coll, id string, dst any) error {
	return s.get(ctx, coll, id, dst)
}

// Find implements docstore.Store
func (s *Store) Find(ctx context.Context, q docstore.Query, dst any) error {
	return s.find(ctx, q, dst)
}

// Count implements docstore.Store
func (s *Store) Count(ctx context.Context, q docstore.Query) (int, error) {
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return 0, err
	}

	n, err := s.col(q.Collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", q.Collection)
	}

	return int(n), nil
}

// Create implements docstore.Store
func (s *Store) Create(ctx context.Context, coll, id string, doc any) error {
	return s.create(ctx, coll, id, doc)
}

// Set implements docstore.Store
func (s *Store) Set(ctx context.Context, coll, id string, doc any) error {
	return s.set(ctx, coll, id, doc)
}

// Update implements docstore.Store
func (s *Store) Update(ctx context.Context, coll, id string, updates ...docstore.Update) error {
	return s.update(ctx, coll, id, updates)
}

// Delete implements docstore.Store
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	return s.delete(ctx, coll, id)
}

// RunTransaction implements docstore.Store with a causally consistent session
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	sess, err := s.cli.client().StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sctx mongo.SessionContext) (any, error) {
		return nil, fn(sctx, &transaction{store: s, ctx: sctx})
	})

	return err
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Watch implements docstore.Store with a change stream
func (s *Store) Watch(ctx context.Context, coll string) (<-chan docstore.Change, error) {
	stream, err := s.col(coll).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, errors.Wrapf(err, "watch %s", coll)
	}

	ch := make(chan docstore.Change, watchBuffer)
	logger := log.Logger.Named("mongo_watch").With(zap.String("collection", coll))
	go func() {
		defer close(ch)
		defer stream.Close(context.Background()) //nolint:errcheck

		for stream.Next(ctx) {
			evt := new(changeEvent)
			if err := stream.Decode(evt); err != nil {
				logger.Warn("decode change event", zap.Error(err))
				continue
			}

			change := docstore.Change{Collection: coll, ID: evt.DocumentKey.ID}
			switch evt.OperationType {
			case "insert":
				change.Kind = docstore.ChangeAdded
			case "delete":
				change.Kind = docstore.ChangeRemoved
			case "update", "replace":
				change.Kind = docstore.ChangeModified
			default:
				continue
			}

			select {
			case ch <- change:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			logger.Error("change stream stopped", zap.Error(err))
		}
	}()

	return ch, nil
}

// Close implements docstore.Store
func (s *Store) Close(ctx context.Context) error {
	return s.cli.close(ctx)
}

type transaction struct {
	store *Store
	ctx   mongo.SessionContext
}

func (t *transaction) Get(coll, id string, dst any) error {
	return t.store.get(t.ctx, coll, id, dst)
}

func (t *transaction) Find(q docstore.Query, dst any) error {
	return t.store.find(t.ctx, q, dst)
}

func (t *transaction) Create(coll, id string, doc any) error {
	return t.store.create(t.ctx, coll, id, doc)
}

func (t *transaction) Set(coll, id string, doc any) error {
	return t.store.set(t.ctx, coll, id, doc)
}

func (t *transaction) Update(coll, id string, updates ...docstore.Update) error {
	return t.store.update(t.ctx, coll, id, updates)
}

func (t *transaction) Delete(coll, id string) error {
	return t.store.delete(t.ctx, coll, id)
}
