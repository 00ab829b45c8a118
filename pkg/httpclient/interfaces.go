package httpclient

import (
	"context"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// FilePart is a file attached to a multipart request.
type FilePart struct {
	Field    string
	FileName string
	Content  []byte
}

// Request describes a single outbound call. Form and Files are only sent when
// Multipart is set; Query keys are appended to URL.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Query     map[string]string
	Multipart bool
	Form      map[string]string
	Files     []FilePart
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
}
