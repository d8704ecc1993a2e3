package rfc9111

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// §  1.2.  Syntax Notation
// §
// §     This specification uses the Augmented Backus-Naur Form (ABNF)
// §     notation of [RFC5234], extended with the notation for case-
// §     sensitivity in strings defined in [RFC7405].
// §
// §  1.2.1.  Imported Rules
// §
// §     [HTTP] defines the following rules:
// §
// §       HTTP-date     = <HTTP-date, see [HTTP], Section 5.6.7>
// §       OWS           = <OWS, see [HTTP], Section 5.6.3>
// §       quoted-string = <quoted-string, see [HTTP], Section 5.6.4>
// §       token         = <token, see [HTTP], Section 5.6.2>

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
const maxDeltaSeconds = 2147483648

// deltaSeconds parses a delta-seconds value.
// The boolean is false when the value is not a non-negative integer.
func deltaSeconds(secondsStr string) (time.Duration, bool) {
	seconds, err := strconv.ParseUint(secondsStr, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return maxDeltaSeconds * time.Second, true
		}
		return 0, false
	}
	if seconds > maxDeltaSeconds {
		seconds = maxDeltaSeconds
	}
	return time.Duration(seconds) * time.Second, true
}

// This section is from the HTTP specification (RFC9110), not the cache specification
//
// §  5.6.7.  Date/Time Formats
// §
// §       HTTP-date    = IMF-fixdate / obs-date
// §
// §     An example of the preferred format is
// §
// §       Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate
// §
// §     Examples of the two obsolete formats are
// §
// §       Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
// §       Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.  When a sender generates a field
// §     that contains one or more timestamps defined as HTTP-date, the sender
// §     MUST generate those timestamps in the IMF-fixdate format.
func HttpDate(dateStr string) (time.Time, error) {
	date, err := imfDate(dateStr)
	if err == nil {
		return date, nil
	}
	// try to parse as obsolete date
	if date, obsErr := obsDate(dateStr); obsErr == nil {
		return date, nil
	}
	// return original error if unsuccessful
	return date, err
}

// ToHttpDate formats t as an IMF-fixdate.
func ToHttpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 MST"

func imfDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	date, err := time.Parse(imfDateLayout, str)
	if err != nil {
		return date, err
	}
	if !strings.HasSuffix(str, " GMT") {
		return date, fmt.Errorf("date %s is not in GMT time", dateStr)
	}
	return date.UTC(), nil
}

func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.Parse(time.RFC850, str); err == nil {
		return date.UTC(), nil
	}
	date, err := time.Parse(time.ANSIC, str)
	return date.UTC(), err
}

// normalizeDateStr upper-cases the date so that the zone name matches
// case-insensitively. Day and month names already do.
func normalizeDateStr(dateStr string) string {
	return strings.ToUpper(strings.TrimSpace(dateStr))
}
