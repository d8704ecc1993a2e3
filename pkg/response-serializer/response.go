// Package serializer stores responses as HTTP/1.1 messages.
package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ReadBody reads the complete body of the response and sets an equivalent body back,
// so that the response can still be consumed by the caller.
func ReadBody(res *http.Response) ([]byte, error) {
	if res.Body == nil || res.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	// set response body back, including what was read before a failure
	res.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return body, fmt.Errorf("could not read response body: %w", err)
	}
	return body, nil
}

// ResponseToBytes converts a response to a byte slice.
// It returns the HTTP/1.1 representation of the response, with an explicit Content-Length.
// The body of the response is left intact.
func ResponseToBytes(res *http.Response) ([]byte, error) {
	body, err := ReadBody(res)
	if err != nil {
		return nil, err
	}
	clone := *res
	clone.Proto, clone.ProtoMajor, clone.ProtoMinor = "HTTP/1.1", 1, 1
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	clone.TransferEncoding = nil
	clone.Trailer = nil
	clone.Close = false
	clone.Request = nil

	buf := &bytes.Buffer{}
	if err := clone.Write(buf); err != nil {
		return nil, fmt.Errorf("could not write response: %w", err)
	}
	return buf.Bytes(), nil
}

// BytesToResponse converts a byte slice to a http.Response.
// The body of the returned response is fully buffered.
func BytesToResponse(b []byte) (*http.Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read stored response: %w", err)
	}
	if _, err := ReadBody(res); err != nil {
		return nil, err
	}
	return res, nil
}

// StatusText returns the reason phrase of a status line such as "200 OK".
func StatusText(status string) string {
	code, text, found := strings.Cut(status, " ")
	if _, err := strconv.Atoi(code); err != nil {
		return status
	}
	if !found {
		return ""
	}
	return text
}
