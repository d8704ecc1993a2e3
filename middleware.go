package tilecache

import (
	"net/http"

	tee "github.com/always-cache/tile-cache/pkg/response-writer-tee"
)

// Middleware caches the GET responses of an in-process tile handler.
// Fresh entries are served without calling next. Otherwise next handles the request
// and a successful response is stored on its way to the client.
func (c *TileCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		cs := CacheStatus{}
		entry, fresh, err := c.Get(r.Context(), r)
		if err != nil {
			c.log.Warn().Err(err).Msg("Could not read from cache")
			cs.Detail("store-error")
		}
		if fresh {
			cs.Hit()
			res := entry.HTTPResponse()
			copyHeader(w.Header(), res.Header)
			w.Header().Set("Cache-Status", cs.String())
			w.WriteHeader(res.StatusCode)
			if _, err := w.Write(entry.Body); err != nil {
				c.log.Error().Err(err).Msg("Could not write response body to client")
			}
			return
		}
		if entry != nil {
			cs.Forward(CacheStatusFwdStale)
		} else {
			cs.Forward(CacheStatusFwdUriMiss)
		}

		requestTime := c.now()
		// set cache-status on underlying rw only (i.e. do not save to cache)
		w.Header().Set("Cache-Status", cs.String())
		rwtee := tee.NewResponseSaver(w)
		next.ServeHTTP(rwtee, r)

		if isSuccessful(rwtee.StatusCode()) {
			c.Put(r, rwtee.Response(), requestTime)
		}
	})
}
