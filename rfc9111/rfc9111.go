// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) that the tile cache
// relies on: parsing of the Cache-Control field, interpretation of the Expires field
// and the HTTP-date and delta-seconds syntax they are built on.
//
// Files are named after the RFC section they implement. Quotes from the RFC are
// prefixed with `§` so they can be told apart from regular comments.
package rfc9111

import "net/http"

// ResponseCacheControl parses all Cache-Control field lines of a response header.
func ResponseCacheControl(header http.Header) CacheControl {
	return ParseCacheControl(header.Values("Cache-Control")...)
}
