package tilecache

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareReturnsSecondRequestFromCache(t *testing.T) {
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprintf(w, "tile %s", r.URL.Path)
	})
	c := newTestCache(t, Config{Clock: newTestClock().Now})
	mw := c.Middleware(handler)
	req := httptest.NewRequest(http.MethodGet, "http://tiles.local/1/2/3.png", nil)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	assert.Equal(t, "tile /1/2/3.png", rec.Body.String())
	assert.Equal(t, "TileCache; fwd=uri-miss", rec.Header().Get("Cache-Status"))
	waitStored(t, c, req)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, handleCount)
	assert.Equal(t, "tile /1/2/3.png", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "TileCache; hit", rec.Header().Get("Cache-Status"))
}

func TestMiddlewarePassesOtherMethods(t *testing.T) {
	var handleCount int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCount++
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	})
	c := newTestCache(t, Config{})
	mw := c.Middleware(handler)

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/tiles", nil))
	require.NoError(t, c.Close())
	assert.Equal(t, 1, handleCount)
	assert.Empty(t, storedKeys(t, c))
}

func TestMiddlewareDoesNotStoreErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		http.Error(w, "no such tile", http.StatusNotFound)
	})
	c := newTestCache(t, Config{})
	rec := httptest.NewRecorder()
	c.Middleware(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/9/9/9.png", nil))
	require.NoError(t, c.Close())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, storedKeys(t, c))
}

// brokenClientWriter fails every body write, like a client that went away.
type brokenClientWriter struct {
	header http.Header
	status int
}

func (w *brokenClientWriter) Header() http.Header {
	return w.header
}

func (w *brokenClientWriter) WriteHeader(status int) {
	w.status = status
}

func (w *brokenClientWriter) Write(b []byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestMiddlewareLogsFailedHitWrite(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.ErrorLevel)
	c := newTestCache(t, Config{Logger: &logger, Clock: newTestClock().Now})
	req := tileRequest(t, "/1/2/3.png")
	c.Put(req, tileResponse(200, "tile", "Cache-Control", "max-age=60"), testStart)
	waitStored(t, c, req)

	w := &brokenClientWriter{header: make(http.Header)}
	c.Middleware(http.NotFoundHandler()).ServeHTTP(w, req)
	require.NoError(t, c.Close())

	assert.Equal(t, http.StatusOK, w.status)
	assert.Contains(t, logs.String(), "Could not write response body to client")
	assert.Contains(t, logs.String(), "client went away")
}
