package tilecache

import (
	"context"
	"net/http"
	"time"

	serializer "github.com/always-cache/tile-cache/pkg/response-serializer"
	"github.com/always-cache/tile-cache/rfc9111"
)

type writeJob struct {
	key   string
	value []byte
}

// Put stores the response for the request, unless the response says it must not be stored.
// The body of res is read completely and set back, so the caller can still use it.
//
// A max-age directive sets Expires to requestTime plus max-age, replacing any Expires
// sent by the origin.
//
// The write itself happens in the background, in the order Put was called.
// Size limit passes run on the same worker, between writes.
// Failures are logged, never returned.
func (c *TileCache) Put(req *http.Request, res *http.Response, requestTime time.Time) {
	if !c.enabled || res == nil {
		return
	}
	key, err := c.keyer.Key(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not get cache key")
		return
	}
	log := c.log.With().Str("key", key).Logger()

	body, err := serializer.ReadBody(res)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read response, not caching")
		return
	}

	cacheControl := rfc9111.ResponseCacheControl(res.Header)
	if cacheControl.NoStore() {
		log.Trace().Msg("Response has no-store, not caching")
		c.metrics.RecordWriteSkipped("no-store")
		return
	}

	header := res.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if maxAge, ok := cacheControl.MaxAge(); ok {
		rfc9111.SetExpires(header, requestTime.Add(maxAge))
	}

	entry := &Response{
		Status:     res.StatusCode,
		StatusText: serializer.StatusText(res.Status),
		Header:     header,
		Body:       body,
	}
	value, err := entry.encode()
	if err != nil {
		log.Error().Err(err).Msg("Could not encode response")
		return
	}

	log.Trace().Str("expires", header.Get("Expires")).Msg("Queueing cache write")
	c.enqueue(writeJob{key, value})
}

// accepting reports whether Put still hands writes to the write worker.
func (c *TileCache) accepting() bool {
	if !c.enabled {
		return false
	}
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return !c.closed
}

// enqueue hands the job to the write worker. It blocks while the queue is full.
func (c *TileCache) enqueue(job writeJob) {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	if c.closed {
		c.log.Trace().Str("key", job.key).Msg("Cache closed, dropping write")
		return
	}
	c.writes <- job
}

// writeLoop writes queued jobs in order. A size limit pass that falls due runs
// before the next job is taken, so writes never race ahead of eviction.
func (c *TileCache) writeLoop(ctx context.Context) {
	for job := range c.writes {
		if c.write(ctx, job) {
			c.EnforceSizeLimit(ctx)
		}
	}
	if c.enabled {
		// leave the store within its limit
		c.EnforceSizeLimit(ctx)
	}
}

// write puts the job in the store and reports whether a size limit pass is due.
func (c *TileCache) write(ctx context.Context, job writeJob) bool {
	bucket, err := c.provider.Open(ctx, c.namespace)
	if err != nil {
		c.log.Error().Err(err).Str("key", job.key).Msg("Could not open cache bucket")
		c.metrics.RecordStoreError("open")
		return false
	}
	err = bucket.Put(ctx, job.key, job.value)
	// a failed put may still have added the entry
	due := c.admit()
	if err != nil {
		c.log.Error().Err(err).Str("key", job.key).Msg("Could not write to cache")
		c.metrics.RecordStoreError("put")
		return due
	}
	c.metrics.RecordWrite()
	c.log.Trace().Str("key", job.key).Int("bytes", len(job.value)).Msg("Wrote to cache")
	return due
}
