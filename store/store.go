// Package store holds the persistent storage the tile cache writes responses to.
//
// Storage is split in named buckets. Each bucket is an ordered map from request identity
// to encoded response. The order is insertion order: putting a key again moves it to the
// end, which is what the cache relies on for evicting the least recently written entries.
//
// Implementations must be thread-safe!
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Provider opens and deletes buckets.
type Provider interface {
	// Open returns the bucket with the given name, creating it if needed.
	Open(ctx context.Context, namespace string) (Bucket, error)
	// Delete removes the bucket and all of its entries.
	// It reports whether the bucket existed.
	Delete(ctx context.Context, namespace string) (bool, error)
}

// Bucket is an insertion-ordered map of keys to values.
type Bucket interface {
	// Put stores the value under the given key.
	// An existing entry is replaced and becomes the newest entry.
	Put(ctx context.Context, key string, value []byte) error
	// Match returns the value stored under the key,
	// along with a boolean indicating whether there was one.
	Match(ctx context.Context, key string) ([]byte, bool, error)
	// Keys returns all keys, oldest first.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes the entry for the key and reports whether there was one.
	Delete(ctx context.Context, key string) (bool, error)
}
