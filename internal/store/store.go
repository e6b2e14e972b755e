// Package store persists entities in a local cache first and mirrors them to
// an optional remote store that is authoritative when reachable.
package store

import (
	"context"
	"strings"
	"time"
)

// Collections used by the service.
const (
	CollectionRequests = "requests"
	CollectionNannies  = "nannies"
)

// DefaultTestPrefixes mark ids of test and demo data.
var DefaultTestPrefixes = []string{"test_", "demo_"}

// Entity is anything the store can key and order.
type Entity interface {
	EntityID() string
	EntityCreatedAt() time.Time
}

// Cache keeps one opaque blob per collection. Load returns nil data for a
// collection that was never stored.
type Cache interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Store(ctx context.Context, collection string, data []byte) error
}

// Record is a remote row.
type Record struct {
	ID        string
	Payload   []byte
	CreatedAt time.Time
}

// Remote is the authoritative store. Get returns an error wrapping
// domain.ErrNotFound for unknown ids; List is ordered newest first.
type Remote interface {
	Upsert(ctx context.Context, collection, id string, payload []byte) (Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
	DeleteAll(ctx context.Context, collection string) (int, error)
	DeleteByPrefix(ctx context.Context, collection string, prefixes []string) (int, error)
}

// IsTestID reports whether id starts with one of prefixes.
func IsTestID(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
