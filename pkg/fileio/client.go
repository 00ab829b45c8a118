package fileio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samvad-hq/fileio-go/pkg/httpclient"
)

// DefaultBaseURL is the public file.io origin.
const DefaultBaseURL = "https://file.io/"

const defaultTimeout = 60 * time.Second

// Client talks to file.io. It holds no mutable state after New and is safe
// for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	headers map[string]string
	http    httpclient.Client
	timeout time.Duration
	log     Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another origin, e.g. a sandbox.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(h httpclient.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the timeout of the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.log = ensureLogger(l)
	}
}

// WithClock overrides the clock used to resolve relative expirations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a client. An empty apiKey yields an unauthenticated client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		log:     noopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(c.timeout)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/") + "/"
	c.headers = map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		c.headers["Authorization"] = "Bearer " + c.apiKey
	}
	return c
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool { return c.apiKey != "" }

// BaseURL returns the origin requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends the file at path to file.io without credentials when apiKey
// is empty.
func Upload(ctx context.Context, apiKey, path string, p UploadParams, opts ...Option) (*Result, error) {
	return New(apiKey, opts...).Upload(ctx, path, p)
}

// Download fetches key without credentials when apiKey is empty. See
// Client.Download for the meaning of dest.
func Download(ctx context.Context, apiKey, key, dest string, opts ...Option) (*Result, error) {
	return New(apiKey, opts...).Download(ctx, key, dest)
}

// Upload sends the file at path. A missing or empty file yields
// ErrFileNotFound.
func (c *Client) Upload(ctx context.Context, path string, p UploadParams) (*Result, error) {
	content, err := readSource(path)
	if err != nil {
		return nil, err
	}

	req := httpclient.Request{
		Method:    http.MethodPost,
		URL:       c.baseURL,
		Headers:   c.requestHeaders(nil),
		Multipart: true,
		Form:      encodeFields(p.Expires, p.MaxDownloads, p.AutoDelete, c.now()),
		Files: []httpclient.FilePart{{
			Field:    "file",
			FileName: filepath.Base(path),
			Content:  content,
		}},
	}
	return c.exchange(ctx, "upload", req, ""), nil
}

// List returns the files of the account in Nodes.
func (c *Client) List(ctx context.Context, p ListParams) (*Result, error) {
	req := httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL,
		Headers: c.requestHeaders(nil),
		Query:   p.query(),
	}
	return c.exchange(ctx, "list", req, ""), nil
}

// Me returns plan and usage details of the account.
func (c *Client) Me(ctx context.Context) (*Result, error) {
	req := httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.endpoint("me"),
		Headers: c.requestHeaders(nil),
	}
	return c.exchange(ctx, "me", req, ""), nil
}

// Delete removes the file identified by key.
func (c *Client) Delete(ctx context.Context, key string) (*Result, error) {
	req := httpclient.Request{
		Method:  http.MethodDelete,
		URL:     c.endpoint(key),
		Headers: c.requestHeaders(nil),
	}
	return c.exchange(ctx, "delete", req, key), nil
}

// Update changes the file identified by key. ModeReplaceAll issues a PUT,
// ModeReplacePartial (and the zero Mode) a PATCH; other modes return
// ErrInvalidMode before any I/O.
func (c *Client) Update(ctx context.Context, key string, p UpdateParams) (*Result, error) {
	method, err := p.Mode.method()
	if err != nil {
		return nil, err
	}

	req := httpclient.Request{
		Method:    method,
		URL:       c.endpoint(key),
		Headers:   c.requestHeaders(nil),
		Multipart: true,
		Form:      encodeFields(p.Expires, p.MaxDownloads, p.AutoDelete, c.now()),
	}
	if p.File.IsSet() {
		path, ok := p.File.Get()
		if !ok || strings.TrimSpace(path) == "" {
			req.Form["file"] = ""
		} else {
			content, err := readSource(path)
			if err != nil {
				return nil, err
			}
			req.Files = []httpclient.FilePart{{
				Field:    "file",
				FileName: filepath.Base(path),
				Content:  content,
			}}
		}
	}
	return c.exchange(ctx, "update", req, key), nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + url.PathEscape(strings.TrimPrefix(path, "/"))
}

// requestHeaders copies the client headers and applies overrides.
func (c *Client) requestHeaders(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(c.headers)+len(overrides))
	for k, v := range c.headers {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// readSource loads a local file fully; the handle is closed before returning.
func readSource(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrFileNotFound)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrFileNotFound, path)
	}
	return content, nil
}
