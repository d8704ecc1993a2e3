package rfc9111

import (
	"strings"
	"time"
)

// CacheControl implements parsing of the "Cache-Control" header (/field).
//
// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches along
// §  the request/response chain. Cache directives are identified by a token, to
// §  be compared case-insensitively, and have an optional argument that can use both
// §  token and quoted-string syntax. For the directives defined below that define
// §  arguments, recipients ought to accept both forms, even if a specific form is
// §  required for generation.
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
type CacheControl struct {
	directives map[string]string
}

// Get returns the value (/argument) of the specified directive,
// along with a boolean indicating whether this directive is present
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[strings.ToLower(directive)]
	return val, ok
}

// HasDirective returns whether the specified directive is present
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// Len returns the number of distinct directives.
func (c CacheControl) Len() int {
	return len(c.directives)
}

// ParseCacheControl takes Cache-Control field lines and returns an instance of `CacheControl`.
// Tokens that are not valid directives are skipped; parsing never fails.
func ParseCacheControl(headers ...string) CacheControl {
	m := make(map[string]string)
	// note setting map values like this means last defined directive wins
	for _, header := range headers {
		// "#" means comma-separated list
		for _, directive := range splitList(header) {
			name, arg, hasArg := strings.Cut(directive, "=")
			name = getCacheControlDirectiveName(name)
			if !isToken(name) {
				continue
			}
			if hasArg {
				var ok bool
				if arg, ok = getCacheControlDirectiveArgument(arg); !ok {
					continue
				}
			}
			m[name] = arg
		}
	}
	return CacheControl{m}
}

// splitList splits a "#" list on commas that are not inside a quoted-string.
func splitList(header string) []string {
	var (
		items   []string
		start   int
		quoted  bool
		escaped bool
	)
	for i := 0; i < len(header); i++ {
		switch c := header[i]; {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			items = appendListItem(items, header[start:i])
			start = i + 1
		}
	}
	return appendListItem(items, header[start:])
}

func appendListItem(items []string, item string) []string {
	// §  OWS around list elements is ignored, as are empty elements
	if item = strings.TrimSpace(item); item != "" {
		items = append(items, item)
	}
	return items
}

// getCacheControlDirectiveName returns a normalized name for the given directive.
func getCacheControlDirectiveName(token string) string {
	// §  [...] to be compared case-insensitively [...]
	return strings.ToLower(strings.TrimSpace(token))
}

// getCacheControlDirectiveArgument returns the directive argument in token form,
// i.e. it converts the argument from "quoted-string" to "token" form if needed.
func getCacheControlDirectiveArgument(arg string) (string, bool) {
	// §  [...] argument that can use both token and quoted-string syntax. [...]
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return unquote(arg[1 : len(arg)-1]), true
	}
	return arg, isToken(arg)
}

func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// §  token          = 1*tchar
// §  tchar          = "!" / "#" / "$" / "%" / "&" / "'" / "*"
// §                 / "+" / "-" / "." / "^" / "_" / "`" / "|" / "~"
// §                 / DIGIT / ALPHA
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// §  5.2.2. Response Directives
// §
// §  This section defines cache response directives. A cache MUST obey the Cache-
// §  Control directives defined in this section.

// MaxAge returns "max-age" as a duration, along with a boolean indicating
// whether a usable "max-age" directive was present.
//
// §  5.2.2.1. max-age
// §
// §  Argument syntax:
// §
// §      delta-seconds (see Section 1.2.2)
// §
// §  The max-age response directive indicates that the response is to be considered
// §  stale after its age is greater than the specified number of seconds.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// NoCache reports whether the unqualified or qualified no-cache directive is present.
//
// §  5.2.2.4.  no-cache
// §
// §     The no-cache response directive, in its unqualified form (without an
// §     argument), indicates that the response MUST NOT be used to satisfy
// §     any other request without forwarding it for validation and receiving
// §     a successful response; see Section 4.3.
func (c CacheControl) NoCache() bool {
	return c.HasDirective("no-cache")
}

// NoStore reports whether the no-store directive is present.
//
// §  5.2.2.5.  no-store
// §
// §     The no-store response directive indicates that a cache MUST NOT store
// §     any part of either the immediate request or the response and MUST NOT
// §     use the response to satisfy any other request.
func (c CacheControl) NoStore() bool {
	return c.HasDirective("no-store")
}

// getDeltaSeconds returns the "delta-seconds" as `time.Duration`,
// as well as a boolean indicating whether the directive was set to a valid value.
//
// Examples:
// directive    -> 0,  false
// directive=x  -> 0,  false
// directive=0  -> 0,  true
// directive=60 -> 60, true
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	if secondsStr, ok := c.Get(directive); ok && secondsStr != "" {
		return deltaSeconds(secondsStr)
	}
	return 0, false
}
