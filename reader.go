package tilecache

import (
	"context"
	"net/http"

	"github.com/always-cache/tile-cache/pkg/metrics"
)

// Get looks up the stored response for the request and reports whether it is fresh.
// A stale response is still returned, with fresh set to false.
//
// A fresh response is written back to the store before Get returns,
// which makes it the newest entry and the last to be evicted.
//
// Without a store, or if nothing is stored, Get returns nil, false and no error.
// Errors come from opening the bucket or looking up the entry.
func (c *TileCache) Get(ctx context.Context, req *http.Request) (*Response, bool, error) {
	key, err := c.keyer.Key(req)
	if err != nil {
		return nil, false, err
	}
	log := c.log.With().Str("key", key).Logger()

	bucket, err := c.provider.Open(ctx, c.namespace)
	if err != nil {
		c.metrics.RecordStoreError("open")
		return nil, false, err
	}
	value, ok, err := bucket.Match(ctx, key)
	if err != nil {
		c.metrics.RecordStoreError("match")
		return nil, false, err
	}
	if !ok {
		log.Trace().Msg("Cache miss")
		c.metrics.RecordLookup(metrics.LookupMiss)
		return nil, false, nil
	}

	entry, err := decodeResponse(value)
	if err != nil {
		log.Warn().Err(err).Msg("Could not decode stored response")
		c.metrics.RecordLookup(metrics.LookupMiss)
		return nil, false, nil
	}

	if !IsFresh(entry, c.now()) {
		log.Trace().Str("expires", entry.Header.Get("Expires")).Msg("Cached response is stale")
		c.metrics.RecordLookup(metrics.LookupStale)
		return entry, false, nil
	}

	// touch
	if err := bucket.Put(ctx, key, value); err != nil {
		log.Warn().Err(err).Msg("Could not refresh cache entry position")
		c.metrics.RecordStoreError("touch")
	}
	log.Trace().Msg("Cache hit")
	c.metrics.RecordLookup(metrics.LookupHit)
	return entry, true, nil
}
