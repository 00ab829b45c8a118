package fileio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/samvad-hq/fileio-go/pkg/httpclient"
)

// exchange performs one request and folds every outcome into a Result.
func (c *Client) exchange(ctx context.Context, op string, req httpclient.Request, key string) *Result {
	start := c.now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.WarnObj("fileio request failed", "fileio_error", map[string]any{
			"op":    op,
			"key":   key,
			"error": err.Error(),
		})
		return failure(http.StatusServiceUnavailable, key, CodeServiceUnavailable, messageUnavailable)
	}

	res := normalize(resp, key)
	c.trace(op, req.Method, key, res, start)
	return res
}

func (c *Client) trace(op, method, key string, res *Result, start time.Time) {
	meta := map[string]any{
		"op":         op,
		"method":     method,
		"key":        key,
		"status":     res.Status,
		"success":    res.Success,
		"elapsed_ms": c.now().Sub(start).Milliseconds(),
	}
	if res.Success {
		c.log.DebugObj("fileio request completed", "fileio_request", meta)
		return
	}
	meta["code"] = res.Code
	meta["message"] = res.Message
	c.log.WarnObj("fileio request unsuccessful", "fileio_request", meta)
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

// normalize converts a response into the envelope. JSON objects are taken
// verbatim and completed with success, status and key when absent.
func normalize(resp httpclient.Response, key string) *Result {
	status := resp.StatusCode()
	ok := isSuccessStatus(status)
	body := bytes.TrimSpace(resp.Body())

	if len(body) == 0 {
		if !ok {
			return failure(status, key, CodeServiceUnavailable, messageUnavailable)
		}
		res := &Result{Success: true, Status: status, Key: key}
		res.Fields = res.envelopeFields()
		return res
	}

	fields, err := decodeObject(body)
	if err != nil {
		if !ok {
			return failure(status, key, CodeServiceUnavailable, pageMessage(resp, messageUnavailable))
		}
		return failure(0, key, CodeResultError, messageNotJSON)
	}

	res := &Result{}
	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal(body, res); err != nil && !errors.As(err, &typeErr) {
		return failure(0, key, CodeResultError, messageNotJSON)
	}
	res.Fields = fields

	if _, present := fields["success"]; !present {
		res.Success = ok
		fields["success"] = ok
	}
	if _, present := fields["status"]; !present {
		res.Status = status
		fields["status"] = status
	}
	if _, present := fields["key"]; !present {
		res.Key = key
		fields["key"] = nullableKey(key)
	}
	return res
}

// decodeObject accepts only a JSON object body.
func decodeObject(body []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("json body is null")
	}
	return fields, nil
}
