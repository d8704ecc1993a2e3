package tilecache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/always-cache/tile-cache/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillBucket(t *testing.T, provider store.Provider, count int) []string {
	t.Helper()
	ctx := context.Background()
	bucket, err := provider.Open(ctx, DefaultNamespace)
	require.NoError(t, err)
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("GET:https://tiles.example.com/%d.png", i)
		require.NoError(t, bucket.Put(ctx, key, []byte("x")))
		keys = append(keys, key)
	}
	return keys
}

func TestEnforceSizeLimitKeepsNewest(t *testing.T) {
	memory := store.NewMemory()
	c := newTestCache(t, Config{Store: memory})
	keys := fillBucket(t, memory, 560)

	c.EnforceSizeLimit(context.Background())

	assert.Equal(t, keys[60:], storedKeys(t, c))
	assert.Contains(t, metricsText(t, c), "tilecache_evictions_total 60")
}

func TestEnforceSizeLimitUnderLimit(t *testing.T) {
	memory := store.NewMemory()
	c := newTestCache(t, Config{Store: memory, Limit: 10})
	keys := fillBucket(t, memory, 7)

	c.EnforceSizeLimit(context.Background())

	assert.Equal(t, keys, storedKeys(t, c))
}

func TestEnforceSizeLimitContinuesAfterFailedDelete(t *testing.T) {
	memory := store.NewMemory()
	keys := fillBucket(t, memory, 10)
	failing := &failingStore{Provider: memory, undeletable: map[string]bool{keys[1]: true}}
	c := newTestCache(t, Config{Store: failing, Limit: 5})

	c.EnforceSizeLimit(context.Background())

	assert.Equal(t, append([]string{keys[1]}, keys[5:]...), storedKeys(t, c))
	assert.Contains(t, metricsText(t, c), `tilecache_store_errors_total{op="delete"} 1`)
}

func TestEnforceSizeLimitStoreFailure(t *testing.T) {
	c := newTestCache(t, Config{Store: &failingStore{Provider: store.NewMemory(), failOpen: true}})
	assert.NotPanics(t, func() { c.EnforceSizeLimit(context.Background()) })
}

func TestEvictionFollowsTouch(t *testing.T) {
	c := newTestCache(t, Config{Limit: 3, CheckThreshold: 1000, Clock: newTestClock().Now})
	ctx := context.Background()
	for _, path := range []string{"/a.png", "/b.png", "/c.png"} {
		c.Put(tileRequest(t, path), tileResponse(200, path, "Cache-Control", "max-age=60"), testStart)
	}
	waitStored(t, c, tileRequest(t, "/c.png"))
	_, fresh, err := c.Get(ctx, tileRequest(t, "/a.png"))
	require.NoError(t, err)
	require.True(t, fresh)
	c.Put(tileRequest(t, "/d.png"), tileResponse(200, "d", "Cache-Control", "max-age=60"), testStart)
	waitStored(t, c, tileRequest(t, "/d.png"))

	c.EnforceSizeLimit(ctx)

	assert.False(t, stored(t, c, tileRequest(t, "/b.png")))
	for _, path := range []string{"/a.png", "/c.png", "/d.png"} {
		assert.True(t, stored(t, c, tileRequest(t, path)), path)
	}
}

// sizeWatchingStore records the most entries its bucket held after any write.
type sizeWatchingStore struct {
	store.Provider
	deleteDelay time.Duration
	peak        atomic.Int64
}

type sizeWatchingBucket struct {
	store.Bucket
	s *sizeWatchingStore
}

func (w *sizeWatchingStore) Open(ctx context.Context, namespace string) (store.Bucket, error) {
	b, err := w.Provider.Open(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return &sizeWatchingBucket{b, w}, nil
}

func (b *sizeWatchingBucket) Put(ctx context.Context, key string, value []byte) error {
	if err := b.Bucket.Put(ctx, key, value); err != nil {
		return err
	}
	keys, err := b.Bucket.Keys(ctx)
	if err != nil {
		return err
	}
	for {
		peak := b.s.peak.Load()
		if int64(len(keys)) <= peak || b.s.peak.CompareAndSwap(peak, int64(len(keys))) {
			return nil
		}
	}
}

func (b *sizeWatchingBucket) Delete(ctx context.Context, key string) (bool, error) {
	time.Sleep(b.s.deleteDelay)
	return b.Bucket.Delete(ctx, key)
}

func TestSizeStaysBounded(t *testing.T) {
	for _, delay := range []time.Duration{0, 200 * time.Microsecond} {
		t.Run(delay.String(), func(t *testing.T) {
			watcher := &sizeWatchingStore{Provider: store.NewMemory(), deleteDelay: delay}
			c := newTestCache(t, Config{Store: watcher})
			for i := 0; i < 600; i++ {
				c.Put(tileRequest(t, fmt.Sprintf("/%d.png", i)), tileResponse(200, "tile", "Cache-Control", "max-age=60"), testStart)
			}
			require.NoError(t, c.Close())

			assert.LessOrEqual(t, watcher.peak.Load(), int64(DefaultLimit+DefaultCheckThreshold))
			keys := storedKeys(t, c)
			assert.Len(t, keys, DefaultLimit)
			assert.Equal(t, "GET:https://tiles.example.com/599.png", keys[len(keys)-1])
		})
	}
}

func TestPassRunsAfterThreshold(t *testing.T) {
	watcher := &sizeWatchingStore{Provider: store.NewMemory()}
	c := newTestCache(t, Config{Store: watcher, Limit: 5, CheckThreshold: 3})
	for i := 0; i < 20; i++ {
		c.Put(tileRequest(t, fmt.Sprintf("/%d.png", i)), tileResponse(200, "tile", "Cache-Control", "max-age=60"), testStart)
	}
	waitStored(t, c, tileRequest(t, "/19.png"))

	// passes after admissions 1, 4, 7, 10, 13, 16 and 19
	require.Eventually(t, func() bool {
		return strings.Contains(metricsText(t, c), "tilecache_enforcement_passes_total 7")
	}, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, watcher.peak.Load(), int64(5+3))
}

func TestCloseEnforcesSizeLimit(t *testing.T) {
	c := newTestCache(t, Config{Limit: 5, CheckThreshold: 3})
	for i := 0; i < 40; i++ {
		c.Put(tileRequest(t, fmt.Sprintf("/%d.png", i)), tileResponse(200, "tile", "Cache-Control", "max-age=60"), testStart)
	}
	require.NoError(t, c.Close())

	keys := storedKeys(t, c)
	assert.Len(t, keys, 5)
	assert.Equal(t, "GET:https://tiles.example.com/35.png", keys[0])
}
