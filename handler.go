package tilecache

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/always-cache/tile-cache/rfc9111"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// request headers passed on to the origin
var forwardedRequestHeaders = []string{"Accept", "Accept-Language", "User-Agent"}

type handler struct {
	cache  *TileCache
	origin *url.URL
	client *http.Client
}

// NewHandler returns a handler that serves tiles from the cache and fetches misses from origin.
// Origins with paths are not supported.
//
// Besides tiles it serves:
//
//	POST /.tilecache/clear    delete all cached entries
//	POST /.tilecache/enforce  run a size limit pass
//	GET  /.tilecache/metrics  Prometheus metrics
func NewHandler(cache *TileCache, origin *url.URL, client *http.Client, log zerolog.Logger) http.Handler {
	if client == nil {
		client = http.DefaultClient
	}
	h := &handler{cache: cache, origin: origin, client: client}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.RequestIDHandler("reqId", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Sending response to client")
	}))

	r.Post("/.tilecache/clear", h.clear)
	r.Post("/.tilecache/enforce", h.enforce)
	r.Get("/.tilecache/metrics", cache.Metrics().Handler().ServeHTTP)
	r.Get("/*", h.serveTile)
	return r
}

func (h *handler) serveTile(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	originReq, err := h.originRequest(r)
	if err != nil {
		log.Error().Err(err).Msg("Could not create origin request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cs := CacheStatus{}
	entry, fresh, err := h.cache.Get(r.Context(), originReq)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read from cache")
		cs.Detail("store-error")
	}
	if fresh {
		cs.Hit()
		h.send(w, entry.HTTPResponse(), cs)
		return
	}
	if entry != nil {
		cs.Forward(CacheStatusFwdStale)
	} else {
		cs.Forward(CacheStatusFwdUriMiss)
	}

	log.Trace().Msgf("proxying %s", originReq.URL.String())
	requestTime := h.cache.now()
	res, err := h.client.Do(originReq)
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch from origin")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	if isSuccessful(res.StatusCode) {
		h.cache.Put(originReq, res, requestTime)
		if h.cache.accepting() && !rfc9111.ResponseCacheControl(res.Header).NoStore() {
			cs.Stored()
		}
	}
	h.send(w, res, cs)
}

// originRequest creates the request for the tile at the origin.
// Its URL is also the identity the tile is cached under.
func (h *handler) originRequest(r *http.Request) (*http.Request, error) {
	u := *h.origin
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, name := range forwardedRequestHeaders {
		if value := r.Header.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

func (h *handler) send(w http.ResponseWriter, res *http.Response, cs CacheStatus) {
	copyHeader(w.Header(), res.Header)
	w.Header().Set("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		h.cache.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not clear cache")
		http.Error(w, "could not clear cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) enforce(w http.ResponseWriter, r *http.Request) {
	h.cache.EnforceSizeLimit(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

func isSuccessful(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// headers set by an upstream proxy are not passed on
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
