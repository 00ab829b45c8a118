// Package fileiotest provides an in-memory stand-in for the file.io API.
package fileiotest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxDownloads = 1
	defaultExpiry       = 14 * 24 * time.Hour
	maxUploadBytes      = 32 << 20
)

// StoredFile is a file held by the fake. Anonymous files were uploaded
// without credentials and are left out of the account listing.
type StoredFile struct {
	Key          string
	Name         string
	Content      []byte
	Expires      string
	MaxDownloads int
	Downloads    int
	AutoDelete   bool
	Anonymous    bool
	Created      time.Time
	Modified     time.Time
}

// RecordedRequest captures what the fake received.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Form          map[string][]string
	FileName      string
	HasFile       bool
	Authorization string
	Accept        string
}

// Field returns the first value of a form field and whether it was sent.
func (r RecordedRequest) Field(name string) (string, bool) {
	vals, ok := r.Form[name]
	if !ok || len(vals) == 0 {
		return "", ok
	}
	return vals[0], true
}

// Fake implements the file.io endpoints in memory.
type Fake struct {
	apiKey string

	mu       sync.Mutex
	files    map[string]*StoredFile
	seq      int
	requests []RecordedRequest
	now      func() time.Time
}

// NewFake returns an empty fake. When apiKey is non-empty, authenticated
// routes require exactly that bearer token.
func NewFake(apiKey string) *Fake {
	return &Fake{
		apiKey: strings.TrimSpace(apiKey),
		files:  make(map[string]*StoredFile),
		now:    time.Now,
	}
}

// NewServer starts an httptest server backed by a new Fake.
func NewServer(apiKey string) (*httptest.Server, *Fake) {
	fake := NewFake(apiKey)
	return httptest.NewServer(fake), fake
}

// Put seeds a file and returns its key.
func (f *Fake) Put(name string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf := f.newFileLocked(name, content)
	return sf.Key
}

// File returns a copy of the stored file.
func (f *Fake) File(key string) (StoredFile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, ok := f.files[key]
	if !ok {
		return StoredFile{}, false
	}
	cp := *sf
	cp.Content = append([]byte(nil), sf.Content...)
	return cp, true
}

// Len returns the number of stored files.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// Requests returns every request received so far.
func (f *Fake) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// LastRequest returns the most recent request.
func (f *Fake) LastRequest() (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return RecordedRequest{}, false
	}
	return f.requests[len(f.requests)-1], true
}

func (f *Fake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec, upload, err := record(r)
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	key := strings.Trim(r.URL.Path, "/")
	switch {
	case key == "" && r.Method == http.MethodPost:
		if !f.authorizedOptional(r) {
			writeUnauthorized(w)
			return
		}
		f.handleUpload(w, r, rec, upload)
	case key == "" && r.Method == http.MethodGet:
		if !f.authorized(r) {
			writeUnauthorized(w)
			return
		}
		f.handleList(w, r)
	case key == "me" && r.Method == http.MethodGet:
		if !f.authorized(r) {
			writeUnauthorized(w)
			return
		}
		f.handleMe(w)
	case key != "" && r.Method == http.MethodGet:
		if !f.authorizedOptional(r) {
			writeUnauthorized(w)
			return
		}
		f.handleDownload(w, key)
	case key != "" && r.Method == http.MethodDelete:
		if !f.authorized(r) {
			writeUnauthorized(w)
			return
		}
		f.handleDelete(w, key)
	case key != "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		if !f.authorized(r) {
			writeUnauthorized(w)
			return
		}
		f.handleUpdate(w, r, key, rec, upload, r.Method == http.MethodPut)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "unsupported route")
	}
}

type uploadPart struct {
	name    string
	content []byte
}

// record captures the request and the uploaded file part, if any.
func record(r *http.Request) (RecordedRequest, *uploadPart, error) {
	rec := RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Form:          map[string][]string{},
		Authorization: r.Header.Get("Authorization"),
		Accept:        r.Header.Get("Accept"),
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return rec, nil, nil
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return rec, nil, fmt.Errorf("parse multipart: %w", err)
	}
	for k, v := range r.MultipartForm.Value {
		rec.Form[k] = append([]string(nil), v...)
	}

	file, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return rec, nil, nil
	}
	if err != nil {
		return rec, nil, fmt.Errorf("read file part: %w", err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return rec, nil, fmt.Errorf("read file part: %w", err)
	}
	rec.HasFile = true
	rec.FileName = hdr.Filename
	return rec, &uploadPart{name: hdr.Filename, content: content}, nil
}

func (f *Fake) handleUpload(w http.ResponseWriter, r *http.Request, rec RecordedRequest, upload *uploadPart) {
	if upload == nil || len(upload.content) == 0 {
		writeError(w, http.StatusBadRequest, "FILE_REQUIRED", "a non-empty file is required")
		return
	}

	f.mu.Lock()
	sf := f.newFileLocked(upload.name, upload.content)
	sf.Anonymous = rec.Authorization == ""
	f.applyLocked(sf, rec, true)
	node := f.nodeLocked(r, sf)
	f.mu.Unlock()

	node["success"] = true
	node["status"] = http.StatusOK
	writeJSON(w, http.StatusOK, node)
}

func (f *Fake) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	f.mu.Lock()
	matched := make([]*StoredFile, 0, len(f.files))
	for _, sf := range f.files {
		if sf.Anonymous {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sf.Name), search) {
			continue
		}
		matched = append(matched, sf)
	}
	sortFiles(matched, q.Get("sort"))

	total := len(matched)
	if offset > 0 {
		if offset > len(matched) {
			offset = len(matched)
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	nodes := make([]map[string]any, 0, len(matched))
	for _, sf := range matched {
		nodes = append(nodes, f.nodeLocked(r, sf))
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  http.StatusOK,
		"nodes":   nodes,
		"count":   total,
	})
}

func sortFiles(files []*StoredFile, by string) {
	less := func(i, j int) bool {
		if files[i].Created.Equal(files[j].Created) {
			return files[i].Key < files[j].Key
		}
		return files[i].Created.After(files[j].Created)
	}
	switch strings.TrimPrefix(by, "-") {
	case "name":
		less = func(i, j int) bool { return files[i].Name < files[j].Name }
	case "size":
		less = func(i, j int) bool { return len(files[i].Content) < len(files[j].Content) }
	case "expires":
		less = func(i, j int) bool { return files[i].Expires < files[j].Expires }
	}
	sort.SliceStable(files, less)
}

func (f *Fake) handleMe(w http.ResponseWriter) {
	f.mu.Lock()
	var used int64
	for _, sf := range f.files {
		used += int64(len(sf.Content))
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"status":           http.StatusOK,
		"id":               "sandbox-account",
		"name":             "Sandbox",
		"email":            "sandbox@example.com",
		"planId":           0,
		"planName":         "free",
		"maxStorageBytes":  int64(4 << 30),
		"usedStorageBytes": used,
		"maxFileSizeBytes": int64(maxUploadBytes),
	})
}

func (f *Fake) handleDownload(w http.ResponseWriter, key string) {
	f.mu.Lock()
	sf, ok := f.files[key]
	if !ok {
		f.mu.Unlock()
		writeNotFound(w, key)
		return
	}
	sf.Downloads++
	content := append([]byte(nil), sf.Content...)
	name := sf.Name
	if sf.AutoDelete && sf.MaxDownloads > 0 && sf.Downloads >= sf.MaxDownloads {
		delete(f.files, key)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", http.DetectContentType(content))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (f *Fake) handleDelete(w http.ResponseWriter, key string) {
	f.mu.Lock()
	_, ok := f.files[key]
	delete(f.files, key)
	f.mu.Unlock()
	if !ok {
		writeNotFound(w, key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  http.StatusOK,
		"key":     key,
	})
}

func (f *Fake) handleUpdate(w http.ResponseWriter, r *http.Request, key string, rec RecordedRequest, upload *uploadPart, replaceAll bool) {
	f.mu.Lock()
	sf, ok := f.files[key]
	if !ok {
		f.mu.Unlock()
		writeNotFound(w, key)
		return
	}
	if upload != nil && len(upload.content) > 0 {
		sf.Content = upload.content
		sf.Name = upload.name
	}
	f.applyLocked(sf, rec, replaceAll)
	sf.Modified = f.now().UTC()
	node := f.nodeLocked(r, sf)
	f.mu.Unlock()

	node["success"] = true
	node["status"] = http.StatusOK
	writeJSON(w, http.StatusOK, node)
}

// applyLocked copies form settings onto sf. With reset, settings missing
// from the form fall back to their defaults.
func (f *Fake) applyLocked(sf *StoredFile, rec RecordedRequest, reset bool) {
	if v, ok := rec.Field("expires"); ok {
		sf.Expires = v
	} else if reset {
		sf.Expires = f.now().Add(defaultExpiry).UTC().Format(time.RFC3339)
	}

	if v, ok := rec.Field("maxDownloads"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			n = defaultMaxDownloads
		}
		sf.MaxDownloads = n
	} else if reset {
		sf.MaxDownloads = defaultMaxDownloads
	}

	if v, ok := rec.Field("autoDelete"); ok {
		sf.AutoDelete = strings.EqualFold(v, "true")
	} else if reset {
		sf.AutoDelete = true
	}
}

func (f *Fake) newFileLocked(name string, content []byte) *StoredFile {
	f.seq++
	now := f.now().UTC()
	sf := &StoredFile{
		Key:          fmt.Sprintf("key%06d", f.seq),
		Name:         name,
		Content:      append([]byte(nil), content...),
		Expires:      now.Add(defaultExpiry).Format(time.RFC3339),
		MaxDownloads: defaultMaxDownloads,
		AutoDelete:   true,
		Created:      now,
		Modified:     now,
	}
	f.files[sf.Key] = sf
	return sf
}

func (f *Fake) nodeLocked(r *http.Request, sf *StoredFile) map[string]any {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return map[string]any{
		"id":              sf.Key,
		"key":             sf.Key,
		"name":            sf.Name,
		"path":            "/",
		"nodeType":        "file",
		"size":            len(sf.Content),
		"link":            fmt.Sprintf("%s://%s/%s", scheme, r.Host, sf.Key),
		"mimeType":        http.DetectContentType(sf.Content),
		"private":         false,
		"expires":         sf.Expires,
		"maxDownloads":    sf.MaxDownloads,
		"downloads":       sf.Downloads,
		"autoDelete":      sf.AutoDelete,
		"screeningStatus": "pending",
		"created":         sf.Created.Format(time.RFC3339),
		"modified":        sf.Modified.Format(time.RFC3339),
	}
}

func (f *Fake) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return false
	}
	return f.apiKey == "" || token == f.apiKey
}

// authorizedOptional accepts anonymous requests but rejects bad tokens.
func (f *Fake) authorizedOptional(r *http.Request) bool {
	if r.Header.Get("Authorization") == "" {
		return true
	}
	return f.authorized(r)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "a valid API key is required")
}

func writeNotFound(w http.ResponseWriter, key string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"status":  http.StatusNotFound,
		"code":    "NOT_FOUND",
		"message": "file not found",
		"key":     key,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"status":  status,
		"code":    code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
