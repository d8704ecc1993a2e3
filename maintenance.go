package tilecache

import "context"

// EnforceSizeLimit deletes the oldest entries until at most the configured limit remain.
// Entries are deleted one at a time; a failed delete is logged and the rest still run.
// It never fails, store errors are only logged.
//
// The write worker runs a pass whenever enough writes were admitted, and once more
// after the last queued write on Close.
func (c *TileCache) EnforceSizeLimit(ctx context.Context) {
	bucket, err := c.provider.Open(ctx, c.namespace)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not open cache bucket for size limit pass")
		c.metrics.RecordStoreError("open")
		return
	}
	keys, err := bucket.Keys(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not list cache keys")
		c.metrics.RecordStoreError("keys")
		return
	}

	excess := len(keys) - c.limit
	evicted := 0
	for i := 0; i < excess; i++ {
		if ctx.Err() != nil {
			break
		}
		deleted, err := bucket.Delete(ctx, keys[i])
		if err != nil {
			c.log.Warn().Err(err).Str("key", keys[i]).Msg("Could not evict cache entry")
			c.metrics.RecordStoreError("delete")
			continue
		}
		if deleted {
			evicted++
		}
	}
	c.metrics.RecordEnforcement(len(keys), evicted)

	if excess > 0 {
		c.log.Debug().
			Int("entries", len(keys)).
			Int("evicted", evicted).
			Msg("Enforced cache size limit")
	} else {
		c.log.Trace().Int("entries", len(keys)).Msg("Cache within size limit")
	}
}
