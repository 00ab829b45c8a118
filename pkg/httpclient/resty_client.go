package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Do performs the described request. Non-2xx statuses are not errors; only
// transport failures are.
func (r *RestyClient) Do(ctx context.Context, in Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		method = http.MethodGet
	}
	if strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("request url is empty")
	}

	req := r.client.R().SetContext(ctx)
	if len(in.Headers) > 0 {
		req.SetHeaders(in.Headers)
	}
	if len(in.Query) > 0 {
		req.SetQueryParams(in.Query)
	}
	if in.Multipart {
		if len(in.Form) > 0 {
			req.SetMultipartFormData(in.Form)
		}
		for _, f := range in.Files {
			req.SetFileReader(f.Field, f.FileName, bytes.NewReader(f.Content))
		}
	}

	resp, err := req.Execute(method, in.URL)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
