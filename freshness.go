package tilecache

import (
	"time"

	"github.com/always-cache/tile-cache/rfc9111"
)

// IsFresh reports whether the entry can be used without going to the network:
// its Expires lies strictly after now and its Cache-Control has no no-cache directive.
// A missing or unparsable Expires means the entry is expired.
func IsFresh(entry *Response, now time.Time) bool {
	if entry == nil {
		return false
	}
	expires, ok := rfc9111.Expires(entry.Header)
	if !ok || !expires.After(now) {
		return false
	}
	return !rfc9111.ResponseCacheControl(entry.Header).NoCache()
}
