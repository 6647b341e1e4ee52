// Package firestore is the Cloud Firestore backend of docstore.
package firestore

import (
	"context"
	"reflect"

	fsSDK "cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

const watchBuffer = 64

// DB firestore client implementing docstore.Store
type DB struct {
	*fsSDK.Client
	projectID string
}

// NewDB create firestore client
func NewDB(ctx context.Context, projectID string, opts ...option.ClientOption) (db *DB, err error) {
	db = &DB{
		projectID: projectID,
	}
	var cli *fsSDK.Client
	if cli, err = fsSDK.NewClient(ctx, projectID, opts...); err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}

	db.Client = cli
	return db, nil
}

// translateErr maps grpc status codes onto docstore sentinels
func translateErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.Wrapf(docstore.ErrNotFound, format, args...)
	case codes.AlreadyExists:
		return errors.Wrapf(docstore.ErrAlreadyExists, format, args...)
	default:
		return errors.Wrapf(err, format, args...)
	}
}

func (db *DB) query(q docstore.Query) fsSDK.Query {
	fq := db.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Path, string(f.Op), f.Value)
	}

	for _, o := range q.Orders {
		dir := fsSDK.Asc
		if o.Direction == docstore.Desc {
			dir = fsSDK.Desc
		}
		fq = fq.OrderBy(o.Path, dir)
	}

	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	return fq
}

func toUpdates(updates []docstore.Update) []fsSDK.Update {
	fu := make([]fsSDK.Update, 0, len(updates))
	for _, u := range updates {
		var value any
		switch u.Kind {
		case docstore.UpdateIncrement:
			value = fsSDK.Increment(u.Value)
		case docstore.UpdateArrayUnion:
			value = fsSDK.ArrayUnion(u.Values...)
		case docstore.UpdateArrayRemove:
			value = fsSDK.ArrayRemove(u.Values...)
		default:
			value = u.Value
		}

		fu = append(fu, fsSDK.Update{Path: u.Path, Value: value})
	}

	return fu
}

// collect decodes every document of it into dst, a pointer to slice.
func collect(it *fsSDK.DocumentIterator, dst any) error {
	defer it.Stop()

	sliceVal := reflect.ValueOf(dst)
	if sliceVal.Kind() != reflect.Pointer || sliceVal.Elem().Kind() != reflect.Slice {
		return errors.Errorf("destination must be a pointer to slice, got %T", dst)
	}

	elemType := sliceVal.Elem().Type().Elem()
	isPtr := elemType.Kind() == reflect.Pointer
	if isPtr {
		elemType = elemType.Elem()
	}

	out := reflect.MakeSlice(sliceVal.Elem().Type(), 0, 8)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "iterate documents")
		}

		item := reflect.New(elemType)
		if err = snap.DataTo(item.Interface()); err != nil {
			return errors.Wrapf(err, "decode document `%s`", snap.Ref.ID)
		}

		if isPtr {
			out = reflect.Append(out, item)
		} else {
			out = reflect.Append(out, item.Elem())
		}
	}

	sliceVal.Elem().Set(out)
	return nil
}

// Get implements docstore.Store
func (db *DB) Get(ctx context.Context, coll, id string, dst any) error {
	snap, err := db.Collection(coll).Doc(id).Get(ctx)
	if err != nil {
		return translateErr(err, "get %s/%s", coll, id)
	}

	return errors.Wrapf(snap.DataTo(dst), "decode %s/%s", coll, id)
}

// Find implements docstore.Store
func (db *DB) Find(ctx context.Context, q docstore.Query, dst any) error {
	return collect(db.query(q).Documents(ctx), dst)
}

// Count implements docstore.Store
func (db *DB) Count(ctx context.Context, q docstore.Query) (int, error) {
	q.Offset, q.Limit = 0, 0
	fq := db.query(q)
	result, err := fq.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", q.Collection)
	}

	v, ok := result["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.Errorf("unexpected count result %T", result["all"])
	}

	return int(v.GetIntegerValue()), nil
}

// Create implements docstore.Store
func (db *DB) Create(ctx context.Context, coll, id string, doc any) error {
	_, err := db.Collection(coll).Doc(id).Create(ctx, doc)
	return translateErr(err, "create %s/%s", coll, id)
}

// Set implements docstore.Store
func (db *DB) Set(ctx context.Context, coll, id string, doc any) error {
	_, err := db.Collection(coll).Doc(id).Set(ctx, doc)
	return translateErr(err, "set %s/%s", coll, id)
}

// Update implements docstore.Store
func (db *DB) Update(ctx context.Context, coll, id string, updates ...docstore.Update) error {
	_, err := db.Collection(coll).Doc(id).Update(ctx, toUpdates(updates))
	return translateErr(err, "update %s/%s", coll, id)
}

// Delete implements docstore.Store
func (db *DB) Delete(ctx context.Context, coll, id string) error {
	_, err := db.Collection(coll).Doc(id).Delete(ctx)
	return translateErr(err, "delete %s/%s", coll, id)
}

// RunTransaction implements docstore.Store
func (db *DB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return db.Client.RunTransaction(ctx, func(ctx context.Context, tx *fsSDK.Transaction) error {
		return fn(ctx, &transaction{db: db, tx: tx})
	})
}

// Watch implements docstore.Store using collection snapshot listeners
func (db *DB) Watch(ctx context.Context, coll string) (<-chan docstore.Change, error) {
	it := db.Collection(coll).Snapshots(ctx)
	ch := make(chan docstore.Change, watchBuffer)
	logger := log.Logger.Named("firestore_watch").With(zap.String("collection", coll))

	go func() {
		defer close(ch)
		defer it.Stop()

		first := true
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					logger.Error("watch snapshots", zap.Error(err))
				}
				return
			}

			// the first snapshot lists every existing document as added
			if first {
				first = false
				continue
			}

			for _, c := range snap.Changes {
				change := docstore.Change{Collection: coll, ID: c.Doc.Ref.ID}
				switch c.Kind {
				case fsSDK.DocumentAdded:
					change.Kind = docstore.ChangeAdded
				case fsSDK.DocumentRemoved:
					change.Kind = docstore.ChangeRemoved
				default:
					change.Kind = docstore.ChangeModified
				}

				select {
				case ch <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close implements docstore.Store
func (db *DB) Close(context.Context) error {
	return db.Client.Close()
}

type transaction struct {
	db *DB
	tx *fsSDK.Transaction
}

func (t *transaction) Get(coll, id string, dst any) error {
	snap, err := t.tx.Get(t.db.Collection(coll).Doc(id))
	if err != nil {
		return translateErr(err, "tx get %s/%s", coll, id)
	}

	return errors.Wrapf(snap.DataTo(dst), "decode %s/%s", coll, id)
}

func (t *transaction) Find(q docstore.Query, dst any) error {
	return collect(t.tx.Documents(t.db.query(q)), dst)
}

func (t *transaction) Create(coll, id string, doc any) error {
	return translateErr(t.tx.Create(t.db.Collection(coll).Doc(id), doc), "tx create %s/%s", coll, id)
}

func (t *transaction) Set(coll, id string, doc any) error {
	return translateErr(t.tx.Set(t.db.Collection(coll).Doc(id), doc), "tx set %s/%s", coll, id)
}

func (t *transaction) Update(coll, id string, updates ...docstore.Update) error {
	return translateErr(t.tx.Update(t.db.Collection(coll).Doc(id), toUpdates(updates)), "tx update %s/%s", coll, id)
}

func (t *transaction) Delete(coll, id string) error {
	return translateErr(t.tx.Delete(t.db.Collection(coll).Doc(id)), "tx delete %s/%s", coll, id)
}
