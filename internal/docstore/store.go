// Package docstore provides the document store interface backing the
// long-term memory tier, and its SQLite implementation.
package docstore

import (
	"context"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// Store is a document store keyed by the "_id" field. Version counters on
// documents are maintained by the caller, not the store. Implementations
// must be safe for concurrent use.
type Store interface {
	// Insert stores a new document. The document must carry an "_id".
	Insert(ctx context.Context, doc model.Record) error

	// FindOne returns the first document matching the filter. ok is false
	// when nothing matches; err reports infrastructure failure only.
	FindOne(ctx context.Context, filter model.Record) (model.Record, bool, error)

	// UpdateOne merges patch into the first document matching the filter
	// and returns the number of documents modified (0 or 1).
	UpdateOne(ctx context.Context, filter, patch model.Record) (int, error)

	// DeleteOne removes the first document matching the filter and
	// returns the number of documents deleted (0 or 1).
	DeleteOne(ctx context.Context, filter model.Record) (int, error)

	// Find returns up to limit documents matching the filter, in
	// insertion order. A limit <= 0 applies a default.
	Find(ctx context.Context, filter model.Record, limit int) ([]model.Record, error)

	// Close closes the store.
	Close() error
}
