package cachekey

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustKey(t *testing.T, k Keyer, method, target string) string {
	t.Helper()
	r, err := http.NewRequest(method, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	key, err := k.Key(r)
	if err != nil {
		t.Fatalf("%s: %s", target, err)
	}
	return key
}

func TestKeyIncludesMethodAndURL(t *testing.T) {
	key := mustKey(t, NewKeyer(false), "GET", "https://tiles.example.com/v4/1/2/3.pbf")
	if key != "GET:https://tiles.example.com/v4/1/2/3.pbf" {
		t.Fatalf("Key is %s", key)
	}
}

func TestKeyQueryOrder(t *testing.T) {
	k := NewKeyer(false)
	a := mustKey(t, k, "GET", "https://a.example/t.png?b=2&a=1&b=1")
	b := mustKey(t, k, "GET", "https://a.example/t.png?a=1&b=2&b=1")
	if a != b {
		t.Fatalf("%s != %s", a, b)
	}
	c := mustKey(t, k, "GET", "https://a.example/t.png?a=1&b=1&b=2")
	if a == c {
		t.Fatalf("Repeated parameter order should be kept: %s", c)
	}
}

func TestKeyDistinctQuery(t *testing.T) {
	k := NewKeyer(false)
	if mustKey(t, k, "GET", "https://a.example/t?x=1") == mustKey(t, k, "GET", "https://a.example/t?x=2") {
		t.Fatal("Different queries share a key")
	}
}

func TestKeyIgnoreSearch(t *testing.T) {
	k := NewKeyer(true)
	a := mustKey(t, k, "GET", "https://a.example/t.png?access_token=1")
	b := mustKey(t, k, "GET", "https://a.example/t.png?access_token=2")
	if a != b || a != "GET:https://a.example/t.png" {
		t.Fatalf("%s, %s", a, b)
	}
}

func TestKeyFragment(t *testing.T) {
	k := NewKeyer(false)
	if key := mustKey(t, k, "GET", "https://a.example/style.json#v1"); key != "GET:https://a.example/style.json" {
		t.Fatalf("Key is %s", key)
	}
}

func TestKeyMethod(t *testing.T) {
	k := NewKeyer(false)
	if mustKey(t, k, "GET", "https://a.example/t") == mustKey(t, k, "HEAD", "https://a.example/t") {
		t.Fatal("Methods share a key")
	}
}

func TestKeyServerRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/v4/1/2/3.pbf?b=1&a=2", nil)
	r.Host = "Tiles.Example.com"
	key, err := NewKeyer(false).Key(r)
	if err != nil {
		t.Fatal(err)
	}
	if key != "GET:http://tiles.example.com/v4/1/2/3.pbf?a=2&b=1" {
		t.Fatalf("Key is %s", key)
	}
}

func TestSplitKey(t *testing.T) {
	k := NewKeyer(false)
	key := mustKey(t, k, "GET", "https://a.example/t?x=1")
	method, u, err := k.SplitKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if method != "GET" || u != "https://a.example/t?x=1" {
		t.Fatalf("%s %s", method, u)
	}
	if _, _, err := k.SplitKey("nonsense"); err == nil {
		t.Fatal("Malformed key accepted")
	}
}

func TestKeyNilRequest(t *testing.T) {
	if _, err := NewKeyer(false).Key(nil); err == nil {
		t.Fatal("Nil request accepted")
	}
}
