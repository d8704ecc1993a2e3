package tee

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseSaverTees(t *testing.T) {
	rec := httptest.NewRecorder()
	rs := NewResponseSaver(rec)
	rs.Header().Set("Content-Type", "image/png")
	rs.WriteHeader(http.StatusCreated)
	rs.Write([]byte("tile"))

	if rec.Code != http.StatusCreated || rec.Body.String() != "tile" {
		t.Fatalf("Client got %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type header is %s", ct)
	}

	res := rs.Response()
	if res.StatusCode != http.StatusCreated || rs.StatusCode() != http.StatusCreated {
		t.Fatalf("Status code is %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "tile" {
		t.Fatalf("Body is %s", body)
	}
	if res.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("Header is %+v", res.Header)
	}
}

func TestResponseSaverImplicitStatus(t *testing.T) {
	rs := NewResponseSaver(nil)
	rs.Write([]byte("Hello world"))
	if rs.StatusCode() != http.StatusOK {
		t.Fatalf("Status code is %d", rs.StatusCode())
	}
	if res := rs.Response(); res.ContentLength != int64(len("Hello world")) {
		t.Fatalf("Content length is %d", res.ContentLength)
	}
}

func TestResponseSaverKeepsSentHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rs := NewResponseSaver(rec)
	rs.Header().Set("Cache-Control", "max-age=60")
	rs.WriteHeader(http.StatusOK)
	rs.Header().Set("Cache-Control", "no-store")
	rs.Write([]byte("tile"))

	if cc := rs.Response().Header.Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("Saved Cache-Control is %s", cc)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("Sent Cache-Control is %s", cc)
	}
}
