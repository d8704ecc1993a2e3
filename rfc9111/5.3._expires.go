package rfc9111

import (
	"net/http"
	"time"
)

// Expires returns the value of the Expires field. The boolean is false when the
// field is absent or not a valid HTTP-date.
//
// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.
// §
// §       Expires = HTTP-date
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").
func Expires(header http.Header) (time.Time, bool) {
	value := header.Get("Expires")
	if value == "" {
		return time.Time{}, false
	}
	exp, err := HttpDate(value)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

// SetExpires replaces the Expires field with t in IMF-fixdate format.
func SetExpires(header http.Header, t time.Time) {
	header.Set("Expires", ToHttpDate(t))
}
