package fileio

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Codes set on envelopes produced locally rather than by file.io.
const (
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeResultError        = "RESULT_ERROR"
)

const (
	messageUnavailable = "Not able to connect to file.io server"
	messageNotJSON     = "Result is not JSON"
)

var (
	// ErrFileNotFound is returned when an upload source is missing or empty.
	ErrFileNotFound = errors.New("fileio: file not found")
	// ErrInvalidMode is returned by Update for an unknown Mode.
	ErrInvalidMode = errors.New("fileio: invalid update mode")
)

// Result is the envelope returned by every operation. Key is empty when the
// remote reported null. Fields holds the complete decoded response body.
type Result struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Key     string `json:"key"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Link    string `json:"link,omitempty"`
	Nodes   []Node `json:"nodes,omitempty"`
	Path    string `json:"path,omitempty"`
	Name    string `json:"name,omitempty"`

	Content []byte         `json:"-"`
	Fields  map[string]any `json:"-"`
}

// Node is a file entry as returned by upload, update and list.
type Node struct {
	ID              string `json:"id"`
	Key             string `json:"key"`
	Name            string `json:"name"`
	Path            string `json:"path"`
	NodeType        string `json:"nodeType"`
	Size            int64  `json:"size"`
	Link            string `json:"link"`
	MimeType        string `json:"mimeType"`
	Private         bool   `json:"private"`
	Expires         string `json:"expires"`
	MaxDownloads    int    `json:"maxDownloads"`
	Downloads       int    `json:"downloads"`
	AutoDelete      bool   `json:"autoDelete"`
	ScreeningStatus string `json:"screeningStatus"`
	Created         string `json:"created"`
	Modified        string `json:"modified"`
}

// ExpiresAt parses Expires when the remote reports an absolute RFC 3339
// instant; countdowns and empty values yield false.
func (n Node) ExpiresAt() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, n.Expires)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Account is the plan and usage report returned by Me.
type Account struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	PlanID           int    `json:"planId"`
	PlanName         string `json:"planName"`
	MaxStorageBytes  int64  `json:"maxStorageBytes"`
	UsedStorageBytes int64  `json:"usedStorageBytes"`
	MaxFileSizeBytes int64  `json:"maxFileSizeBytes"`
}

// Decode re-decodes Fields into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return errors.New("fileio: nil result")
	}
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("encode result fields: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode result fields: %w", err)
	}
	return nil
}

// Account decodes the account fields of a Me result.
func (r *Result) Account() (Account, error) {
	var acc Account
	err := r.Decode(&acc)
	return acc, err
}

// failure builds a locally generated error envelope.
func failure(status int, key, code, message string) *Result {
	res := &Result{
		Success: false,
		Status:  status,
		Key:     key,
		Code:    code,
		Message: message,
	}
	res.Fields = res.envelopeFields()
	return res
}

// envelopeFields mirrors the typed envelope into a field map.
func (r *Result) envelopeFields() map[string]any {
	fields := map[string]any{
		"success": r.Success,
		"status":  r.Status,
		"key":     nullableKey(r.Key),
	}
	optional := map[string]string{
		"code":    r.Code,
		"message": r.Message,
		"link":    r.Link,
		"path":    r.Path,
		"name":    r.Name,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

func nullableKey(key string) any {
	if key == "" {
		return nil
	}
	return key
}
