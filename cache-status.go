package tilecache

import "fmt"

const cacheStatusName = "TileCache"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain any responses that matched the
	// request URI.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"

	// The cache was able to select a response for the request, but
	// it was stale.
	CacheStatusFwdStale CacheStatusFwdReason = "stale"
)

// CacheStatus is the value of the Cache-Status response header (RFC 9211).
type CacheStatus struct {
	status    CacheStatusStatus
	fwdReason CacheStatusFwdReason
	stored    bool
	detail    string
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

// Stored marks the forwarded response as handed to the cache for storing.
// The write happens in the background and can still fail.
func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) String() string {
	status := fmt.Sprintf("%s; %s", cacheStatusName, cs.status)
	if cs.status == CacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status = status + "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
