// Package docstore is a backend-neutral document store.
//
// Documents are plain structs. Field paths used in queries and updates are the
// names declared in the `firestore` struct tag, and every backend is expected to
// persist the same names (mongo models carry identical `bson` tags).
package docstore

import (
	"context"

	"github.com/Laisky/errors/v2"
)

var (
	// ErrNotFound document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists document id already taken
	ErrAlreadyExists = errors.New("document already exists")
)

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Reader read-only document access
type Reader interface {
	// Get loads document id of collection coll into dst, dst must be a struct pointer
	Get(ctx context.Context, coll, id string, dst any) error
	// Find loads all documents matching q into dst, dst must be a pointer to slice
	Find(ctx context.Context, q Query, dst any) error
	// Count counts documents matching q, offset and limit are ignored
	Count(ctx context.Context, q Query) (int, error)
}

// Store document store
type Store interface {
	Reader
	// Create inserts doc with id, returns ErrAlreadyExists if id is taken
	Create(ctx context.Context, coll, id string, doc any) error
	// Set inserts or overwrites doc with id
	Set(ctx context.Context, coll, id string, doc any) error
	// Update applies updates to an existing document, returns ErrNotFound if missing
	Update(ctx context.Context, coll, id string, updates ...Update) error
	// Delete removes a document, deleting a missing document is not an error
	Delete(ctx context.Context, coll, id string) error
	// RunTransaction runs fn atomically. fn must do all reads before any write
	// and may be invoked more than once.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Watch streams changes of coll until ctx is done
	Watch(ctx context.Context, coll string) (<-chan Change, error)
	// Close releases the backend
	Close(ctx context.Context) error
}

// Tx operations inside a transaction
type Tx interface {
	Get(coll, id string, dst any) error
	Find(q Query, dst any) error
	Create(coll, id string, doc any) error
	Set(coll, id string, doc any) error
	Update(coll, id string, updates ...Update) error
	Delete(coll, id string) error
}

// ChangeKind kind of document change
type ChangeKind string

const (
	// ChangeAdded document created
	ChangeAdded ChangeKind = "added"
	// ChangeModified document updated
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved document deleted
	ChangeRemoved ChangeKind = "removed"
)

// Change is one document change delivered by Watch
type Change struct {
	Kind       ChangeKind
	Collection string
	ID         string
}
