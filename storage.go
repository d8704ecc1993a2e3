package tilecache

import (
	"context"

	"github.com/always-cache/tile-cache/store"
)

// noStore stands in when no store is configured: nothing is kept and nothing is found.
// It is both the provider and its only bucket.
type noStore struct{}

func (noStore) Open(ctx context.Context, namespace string) (store.Bucket, error) {
	return noStore{}, nil
}

// Delete deletes nothing, be it a namespace or a key.
func (noStore) Delete(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (noStore) Put(ctx context.Context, key string, value []byte) error {
	return nil
}

func (noStore) Match(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noStore) Keys(ctx context.Context) ([]string, error) {
	return nil, nil
}
