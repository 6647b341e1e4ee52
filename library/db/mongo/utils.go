package mongo

import (
	"bytes"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/agency-site/library/db/docstore"
)

// translateErr maps driver errors onto docstore sentinels
func translateErr(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongoLib.ErrNoDocuments):
		return errors.Wrapf(docstore.ErrNotFound, format, args...)
	case mongoLib.IsDuplicateKeyError(err):
		return errors.Wrapf(docstore.ErrAlreadyExists, format, args...)
	default:
		return errors.Wrapf(err, format, args...)
	}
}

// withID encodes doc and uses id as the document `_id`.
func withID(id string, doc any) (bson.D, error) {
	buf := new(bytes.Buffer)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	if err != nil {
		return nil, errors.Wrap(err, "new value writer")
	}

	enc, err := bson.NewEncoder(vw)
	if err != nil {
		return nil, errors.Wrap(err, "new encoder")
	}
	// empty arrays keep $addToSet / $pull applicable
	enc.NilSliceAsEmpty()
	if err = enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "marshal document")
	}

	var fields bson.D
	if err = bson.Unmarshal(buf.Bytes(), &fields); err != nil {
		return nil, errors.Wrap(err, "unmarshal document")
	}

	out := make(bson.D, 0, len(fields)+1)
	out = append(out, bson.E{Key: "_id", Value: id})
	for _, f := range fields {
		if f.Key != "_id" {
			out = append(out, f)
		}
	}

	return out, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// buildFilter converts docstore filters into a mongo filter document.
func buildFilter(filters []docstore.Filter) (bson.D, error) {
	if len(filters) == 0 {
		return bson.D{}, nil
	}

	conds := make(bson.A, 0, len(filters))
	for _, f := range filters {
		var cond bson.D
		switch f.Op {
		case docstore.OpEq, docstore.OpArrayContains:
			cond = bson.D{{Key: f.Path, Value: f.Value}}
		case docstore.OpNe:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$ne", Value: f.Value}}}}
		case docstore.OpLt:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$lt", Value: f.Value}}}}
		case docstore.OpLte:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$lte", Value: f.Value}}}}
		case docstore.OpGt:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$gt", Value: f.Value}}}}
		case docstore.OpGte:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$gte", Value: f.Value}}}}
		case docstore.OpIn:
			cond = bson.D{{Key: f.Path, Value: bson.D{{Key: "$in", Value: f.Value}}}}
		default:
			return nil, errors.Errorf("unsupported operator `%s`", f.Op)
		}

		conds = append(conds, cond)
	}

	if len(conds) == 1 {
		return conds[0].(bson.D), nil
	}

	return bson.D{{Key: "$and", Value: conds}}, nil
}

func findOptions(q docstore.Query) *options.FindOptions {
	opt := options.Find()
	if len(q.Orders) > 0 {
		sort := make(bson.D, 0, len(q.Orders))
		for _, o := range q.Orders {
			dir := 1
			if o.Direction == docstore.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Path, Value: dir})
		}
		opt.SetSort(sort)
	}

	if q.Offset > 0 {
		opt.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opt.SetLimit(int64(q.Limit))
	}

	return opt
}

// buildUpdate groups docstore updates by mongo operator.
func buildUpdate(updates []docstore.Update) (bson.D, error) {
	var set, inc, union, pull bson.D
	for _, u := range updates {
		switch u.Kind {
		case docstore.UpdateSet:
			set = append(set, bson.E{Key: u.Path, Value: u.Value})
		case docstore.UpdateIncrement:
			inc = append(inc, bson.E{Key: u.Path, Value: u.Value})
		case docstore.UpdateArrayUnion:
			union = append(union, bson.E{Key: u.Path, Value: bson.D{{Key: "$each", Value: u.Values}}})
		case docstore.UpdateArrayRemove:
			pull = append(pull, bson.E{Key: u.Path, Value: bson.D{{Key: "$in", Value: u.Values}}})
		default:
			return nil, errors.Errorf("unknown update kind %d", u.Kind)
		}
	}

	doc := bson.D{}
	for _, op := range []struct {
		name   string
		fields bson.D
	}{
		{"$set", set},
		{"$inc", inc},
		{"$addToSet", union},
		{"$pull", pull},
	} {
		if len(op.fields) > 0 {
			doc = append(doc, bson.E{Key: op.name, Value: op.fields})
		}
	}

	if len(doc) == 0 {
		return nil, errors.New("empty update")
	}

	return doc, nil
}
