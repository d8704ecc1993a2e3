package rfc9111

import (
	"testing"
	"time"
)

func TestDeltaSeconds(t *testing.T) {
	if d, ok := deltaSeconds("5"); !ok || d != 5*time.Second {
		t.Fatalf("Delta seconds is %v", d)
	}
}

func TestDeltaSecondsClamp(t *testing.T) {
	d, ok := deltaSeconds("99999999999999999999999")
	if !ok || d != maxDeltaSeconds*time.Second {
		t.Fatalf("Delta seconds is %v (%v)", d, ok)
	}
	d, ok = deltaSeconds("4294967296")
	if !ok || d != maxDeltaSeconds*time.Second {
		t.Fatalf("Delta seconds is %v (%v)", d, ok)
	}
}

func TestDeltaSecondsInvalid(t *testing.T) {
	for _, s := range []string{"", "-1", "1.5", "abc", " 5"} {
		if d, ok := deltaSeconds(s); ok {
			t.Fatalf("%q parsed as %v", s, d)
		}
	}
}

func TestHttpDateIMF(t *testing.T) {
	date, err := HttpDate("Sun, 06 Nov 1994 08:49:37 GMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
	want := time.Date(1994, time.November, 6, 8, 49, 37, 0, time.UTC)
	if !date.Equal(want) {
		t.Fatalf("Date is %v", date)
	}
}

func TestHttpDateRFC850(t *testing.T) {
	_, err := HttpDate("Thursday, 18-Aug-50 02:01:18 GMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateANSIC(t *testing.T) {
	date, err := HttpDate("Sun Nov  6 08:49:37 1994")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
	if date.Day() != 6 || date.Hour() != 8 {
		t.Fatalf("Date is %v", date)
	}
}

func TestHttpDateTZCase(t *testing.T) {
	_, err := HttpDate("Thu, 18 Aug 2050 02:01:18 gMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateInvalid(t *testing.T) {
	for _, s := range []string{"0", "", "tomorrow", "Thu, 18 Aug 2050 02:01:18 EST"} {
		if _, err := HttpDate(s); err == nil {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestToHttpDate(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	s := ToHttpDate(time.Date(2050, time.August, 18, 4, 1, 18, 0, loc))
	if s != "Thu, 18 Aug 2050 02:01:18 GMT" {
		t.Fatalf("Date is %s", s)
	}
}
