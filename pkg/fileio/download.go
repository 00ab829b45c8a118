package fileio

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samvad-hq/fileio-go/pkg/httpclient"
)

var dispositionFilename = regexp.MustCompile(`filename=([^;]+);?`)

// Download fetches the file identified by key.
//
// With an empty dest the bytes are returned in Result.Content. When dest is
// an existing directory the file is written inside it under the name
// declared by the Content-Disposition header; otherwise it is written at
// dest. Path and Name report where the file landed. Write failures are
// returned as errors.
func (c *Client) Download(ctx context.Context, key, dest string) (*Result, error) {
	req := httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.endpoint(key),
		Headers: c.requestHeaders(map[string]string{"Accept": "*/*"}),
	}

	start := c.now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.WarnObj("fileio download failed", "fileio_error", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return failure(http.StatusServiceUnavailable, key, CodeServiceUnavailable, messageUnavailable), nil
	}

	status := resp.StatusCode()
	if !isSuccessStatus(status) {
		res := normalize(resp, key)
		c.trace("download", req.Method, key, res, start)
		return res, nil
	}

	name := filenameFromDisposition(resp.Header().Get("Content-Disposition"))
	if strings.TrimSpace(dest) == "" {
		res := &Result{Success: true, Status: status, Key: key, Name: name, Content: resp.Body()}
		res.Fields = res.envelopeFields()
		c.trace("download", req.Method, key, res, start)
		return res, nil
	}

	target := dest
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		if name == "" {
			res := failure(status, key, CodeResultError, "download response declares no filename")
			c.trace("download", req.Method, key, res, start)
			return res, nil
		}
		target = filepath.Join(dest, name)
	}

	if err := os.WriteFile(target, resp.Body(), 0o644); err != nil {
		return nil, fmt.Errorf("write download %s: %w", target, err)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}

	res := &Result{
		Success: true,
		Status:  status,
		Key:     key,
		Path:    filepath.Dir(abs),
		Name:    filepath.Base(abs),
	}
	res.Fields = res.envelopeFields()
	c.trace("download", req.Method, key, res, start)
	return res, nil
}

// filenameFromDisposition returns the base filename declared by a
// Content-Disposition header, or "" when there is none usable.
func filenameFromDisposition(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	var name string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := dispositionFilename.FindStringSubmatch(header); len(m) == 2 {
			name = m[1]
		}
	}

	name = strings.Trim(strings.TrimSpace(name), `"`)
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}
