// Package cachekey derives the request identity under which responses are stored.
package cachekey

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var ErrorMissingURL = fmt.Errorf("request has no URL")

const methodSeparator = ":"

type Keyer struct {
	// Drop the query string from the identity altogether.
	IgnoreSearch bool
}

func NewKeyer(ignoreSearch bool) Keyer {
	return Keyer{IgnoreSearch: ignoreSearch}
}

// Key returns the identity of a request: the method and the absolute URL.
// Query parameters are sorted so that their order does not matter. The fragment is never included.
func (k Keyer) Key(r *http.Request) (string, error) {
	if r == nil || r.URL == nil {
		return "", ErrorMissingURL
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + methodSeparator + k.canonicalURL(r), nil
}

// SplitKey returns the method and URL a key was made of.
func (k Keyer) SplitKey(key string) (method, rawURL string, err error) {
	method, rawURL, found := strings.Cut(key, methodSeparator)
	if !found || method == "" {
		return "", "", fmt.Errorf("Malformed key: %s", key)
	}
	return method, rawURL, nil
}

func (k Keyer) canonicalURL(r *http.Request) string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	// server-side requests carry the authority in Host, not the URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if k.IgnoreSearch {
		u.RawQuery = ""
		u.ForceQuery = false
	} else {
		u.RawQuery = sortedQuery(u.RawQuery)
	}
	return u.String()
}

// sortedQuery orders the parameters by name, keeping the relative order of repeated names.
func sortedQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	params := strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' })
	sort.SliceStable(params, func(i, j int) bool {
		return paramName(params[i]) < paramName(params[j])
	})
	return strings.Join(params, "&")
}

func paramName(param string) string {
	name, _, _ := strings.Cut(param, "=")
	if unescaped, err := url.QueryUnescape(name); err == nil {
		return unescaped
	}
	return name
}
