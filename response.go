package tilecache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	serializer "github.com/always-cache/tile-cache/pkg/response-serializer"
)

// Response is a stored cache entry.
// The computed Expires is kept in Header along with the origin headers.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

// HTTPResponse returns the entry as a *http.Response with its own copy of the headers.
func (r *Response) HTTPResponse() *http.Response {
	text := r.StatusText
	if text == "" {
		text = http.StatusText(r.Status)
	}
	status := strings.TrimSpace(fmt.Sprintf("%d %s", r.Status, text))
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        status,
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
	}
}

func (r *Response) encode() ([]byte, error) {
	return serializer.ResponseToBytes(r.HTTPResponse())
}

func decodeResponse(b []byte) (*Response, error) {
	res, err := serializer.BytesToResponse(b)
	if err != nil {
		return nil, err
	}
	body, err := serializer.ReadBody(res)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:     res.StatusCode,
		StatusText: serializer.StatusText(res.Status),
		Header:     res.Header,
		Body:       body,
	}, nil
}
