// Package store defines the shared state store every game component
// coordinates through: point read/write/update of documents addressed by
// slash-separated paths, equality queries over collections, per-path
// change subscriptions, and multi-document atomic batches.
//
// The contract assumes per-document update atomicity but no cross-document
// transactions outside Batch. Two implementations ship with the module:
// the embedded Memory store and the Redis-backed one in redisstore.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("store: document not found")
	// ErrConflict is returned by implementations that detect a lost
	// concurrent update. Callers needing read-modify-write should prefer
	// Inc, which sidesteps the conflict entirely.
	ErrConflict = errors.New("store: write conflict")
	// ErrSubscriptionLost marks a change feed that died underneath the
	// consumer. Recovery is always resubscribe + full snapshot redraw,
	// never a delta.
	ErrSubscriptionLost = errors.New("store: subscription lost")
)

// Document is the dynamic record shape persisted at a path. Field values
// are JSON-normalized: string, float64, bool, []any, map[string]any.
type Document = map[string]any

// Snapshot pairs a document with its identity within a collection query
// or collection subscription.
type Snapshot struct {
	Path string
	ID   string
	Data Document
}

// Filter is an equality predicate; nothing richer is required by this
// system.
type Filter struct {
	Field string
	Value any
}

func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// increment is the sentinel Update value for an atomic server-side add.
type increment struct {
	Delta int64
}

// Inc marks an Update field for atomic increment. This is the structural
// answer to the read-modify-write scoring race: the store applies the
// delta, no client ever reads-then-writes a counter.
func Inc(delta int64) any {
	return increment{Delta: delta}
}

// AsInc reports whether an Update value is an increment sentinel.
// Implementations call it while applying field updates.
func AsInc(v any) (int64, bool) {
	inc, ok := v.(increment)
	return inc.Delta, ok
}

// CancelFunc tears down a subscription. Idempotent.
type CancelFunc func()

// Batch stages multi-document mutations applied atomically by Commit:
// observers see either none or all of the staged writes.
type Batch interface {
	Set(path string, doc Document, merge bool) Batch
	Update(path string, fields map[string]any) Batch
	Delete(path string) Batch
	Commit(ctx context.Context) error
}

type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)
	// Set writes the full document; with merge it upserts only the given
	// fields, preserving the rest.
	Set(ctx context.Context, path string, doc Document, merge bool) error
	// Update applies partial fields to an existing document. Values may
	// be Inc sentinels.
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	// Query lists the documents directly under a collection path matching
	// all equality filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// SubscribeDoc streams full snapshots of one document, starting with
	// its current state (nil if absent or deleted). The channel closes on
	// cancel or on subscription loss; a consumer observing a close it did
	// not request must treat it as ErrSubscriptionLost and resubscribe.
	SubscribeDoc(ctx context.Context, path string) (<-chan Document, CancelFunc, error)
	// SubscribeCollection streams full collection snapshots under the
	// same closure semantics.
	SubscribeCollection(ctx context.Context, path string) (<-chan []Snapshot, CancelFunc, error)
	Batch() Batch
}

// Join builds a path from segments, Leaf returns the final segment.
func Join(elems ...string) string {
	return strings.Join(elems, "/")
}

func Leaf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DocOf converts a tagged record into its document form via its JSON
// shape, so every persisted field name comes from exactly one place: the
// struct tags.
func DocOf(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: normalize document: %w", err)
	}
	return doc, nil
}

// DataTo decodes a document back into a tagged record. Unknown fields are
// ignored, which is what lets SchemaVersion-gated shapes evolve.
func DataTo(doc Document, v any) error {
	if doc == nil {
		return ErrNotFound
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: re-encode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decode document: %w", err)
	}
	return nil
}
