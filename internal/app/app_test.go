package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/fileio-go/internal/config"
	"github.com/samvad-hq/fileio-go/internal/reconcile"
	"github.com/samvad-hq/fileio-go/pkg/fileio"
	"github.com/samvad-hq/fileio-go/pkg/fileio/fileiotest"
	"github.com/samvad-hq/fileio-go/pkg/publishers"
)

const testKey = "app-test-key"

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
}

func (r *recordingPublisher) ID() string   { return "recorder" }
func (r *recordingPublisher) Type() string { return "memory" }
func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) types() []publishers.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]publishers.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:               "fileio-go",
		APIKey:                testKey,
		BaseURL:               baseURL,
		RequestTimeout:        5 * time.Second,
		RateBurst:             1,
		Concurrency:           4,
		LedgerType:            config.LedgerBBolt,
		LedgerPath:            filepath.Join(t.TempDir(), "ledger.db"),
		LedgerTTL:             time.Hour,
		LedgerCleanupInterval: time.Hour,
	}
}

func newTestApp(t *testing.T) (*App, *fileiotest.Fake, *recordingPublisher) {
	t.Helper()
	srv, fake := fileiotest.NewServer(testKey)
	t.Cleanup(srv.Close)

	rec := &recordingPublisher{}
	a, err := New(context.Background(), testConfig(t, srv.URL), nil, WithPublishers(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, fake, rec
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestUploadRecordsLedgerAndEvents(t *testing.T) {
	a, fake, rec := newTestApp(t)
	paths := []string{
		writeFile(t, "a.txt", "Hello"),
		writeFile(t, "b.txt", "World!"),
		filepath.Join(t.TempDir(), "missing.txt"),
	}

	results, err := a.Upload(context.Background(), paths, fileio.UploadParams{MaxDownloads: fileio.Some(2)}, false)
	if !errors.Is(err, fileio.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for the missing file, got %v", err)
	}
	if len(results) != 3 || results[2] != nil {
		t.Fatalf("unexpected results %v", results)
	}
	for _, res := range results[:2] {
		if !res.Success {
			t.Fatalf("upload failed: %+v", res)
		}
	}
	if fake.Len() != 2 {
		t.Fatalf("expected 2 remote files, got %d", fake.Len())
	}

	records, err := a.Ledger()
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 ledger records, got %d", len(records))
	}
	sources := map[string]bool{}
	for _, r := range records {
		sources[r.Source] = true
		if r.MaxDownloads != 2 || r.Link == "" || r.ExpiresAt.IsZero() {
			t.Fatalf("unexpected record %+v", r)
		}
	}
	if !sources[paths[0]] || !sources[paths[1]] {
		t.Fatalf("unexpected sources %v", sources)
	}
	if got := rec.types(); len(got) != 2 || got[0] != publishers.EventUploaded {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestAnonymousUploadOmitsCredentials(t *testing.T) {
	a, fake, _ := newTestApp(t)
	if _, err := a.Upload(context.Background(), []string{writeFile(t, "a.txt", "Hello")}, fileio.UploadParams{}, true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	req, _ := fake.LastRequest()
	if req.Authorization != "" {
		t.Fatalf("expected no Authorization header, got %q", req.Authorization)
	}
}

func TestReconcileKeepsLiveAnonymousUploads(t *testing.T) {
	a, fake, rec := newTestApp(t)
	ctx := context.Background()

	anon, err := a.Upload(ctx, []string{writeFile(t, "anon.txt", "Hello")}, fileio.UploadParams{}, true)
	if err != nil {
		t.Fatalf("anonymous Upload: %v", err)
	}
	owned, err := a.Upload(ctx, []string{writeFile(t, "owned.txt", "Hello")}, fileio.UploadParams{}, false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if sf, ok := fake.File(anon[0].Key); !ok || !sf.Anonymous {
		t.Fatalf("expected anonymous remote file, got %+v", sf)
	}

	report, err := a.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Local != 2 || report.Remote != 1 || report.Refreshed != 1 || report.Kept != 1 || report.Removed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	records, err := a.Ledger()
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	byKey := map[string]bool{}
	for _, r := range records {
		byKey[r.Key] = r.Anonymous
	}
	if anonymous, ok := byKey[anon[0].Key]; !ok || !anonymous {
		t.Fatalf("anonymous upload %s missing or unflagged in ledger %+v", anon[0].Key, records)
	}
	if anonymous, ok := byKey[owned[0].Key]; !ok || anonymous {
		t.Fatalf("owned upload %s missing or flagged in ledger %+v", owned[0].Key, records)
	}
	for _, typ := range rec.types() {
		if typ != publishers.EventUploaded {
			t.Fatalf("expected only uploaded events, got %v", rec.types())
		}
	}
}

func TestUpdateAndDeleteMaintainLedger(t *testing.T) {
	a, fake, rec := newTestApp(t)
	results, err := a.Upload(context.Background(), []string{writeFile(t, "a.txt", "Hello")}, fileio.UploadParams{}, false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key := results[0].Key

	res, err := a.Update(context.Background(), key, fileio.UpdateParams{MaxDownloads: fileio.Some(9)})
	if err != nil || !res.Success {
		t.Fatalf("Update: %+v %v", res, err)
	}
	records, _ := a.Ledger()
	if len(records) != 1 || records[0].MaxDownloads != 9 || records[0].UpdatedAt.IsZero() {
		t.Fatalf("expected refreshed record, got %+v", records)
	}

	dels, err := a.Delete(context.Background(), []string{key})
	if err != nil || !dels[0].Success {
		t.Fatalf("Delete: %+v %v", dels, err)
	}
	if records, _ := a.Ledger(); len(records) != 0 {
		t.Fatalf("expected empty ledger, got %+v", records)
	}
	if fake.Len() != 0 {
		t.Fatalf("expected remote file deleted")
	}

	got := rec.types()
	want := []publishers.EventType{publishers.EventUploaded, publishers.EventUpdated, publishers.EventDeleted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if rec.events[2].Name != "a.txt" {
		t.Fatalf("deleted event should carry the ledger name, got %+v", rec.events[2])
	}
}

func TestUpdateInvalidModeDoesNotTouchLedger(t *testing.T) {
	a, _, rec := newTestApp(t)
	if _, err := a.Update(context.Background(), "key", fileio.UpdateParams{Mode: "bogus"}); !errors.Is(err, fileio.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if len(rec.types()) != 0 {
		t.Fatal("expected no events")
	}
}

func TestDeleteAllRemovesEveryRemoteFile(t *testing.T) {
	a, fake, _ := newTestApp(t)
	for i := 0; i < 5; i++ {
		fake.Put("f.txt", []byte("x"))
	}

	results, err := a.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(results) != 5 || fake.Len() != 0 {
		t.Fatalf("expected 5 deletions, got %d results and %d remaining", len(results), fake.Len())
	}
}

func TestDeleteAllStopsWhenListingIgnoresOffset(t *testing.T) {
	var (
		mu    sync.Mutex
		lists int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			mu.Lock()
			lists++
			mu.Unlock()
			nodes := make([]map[string]any, 0, reconcile.DefaultPageSize)
			for i := 0; i < reconcile.DefaultPageSize; i++ {
				nodes = append(nodes, map[string]any{"key": fmt.Sprintf("k%03d", i)})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "status": 200, "nodes": nodes})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "status": 200})
	}))
	t.Cleanup(srv.Close)

	a, err := New(context.Background(), testConfig(t, srv.URL), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	results, err := a.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(results) != reconcile.DefaultPageSize {
		t.Fatalf("expected %d deletions, got %d", reconcile.DefaultPageSize, len(results))
	}
	mu.Lock()
	defer mu.Unlock()
	if lists != 2 {
		t.Fatalf("expected 2 listing calls, got %d", lists)
	}
}

func TestReconcileDropsAutoDeletedFiles(t *testing.T) {
	a, _, rec := newTestApp(t)
	results, err := a.Upload(context.Background(), []string{
		writeFile(t, "once.txt", "Hello"),
		writeFile(t, "keep.txt", "Hello"),
	}, fileio.UploadParams{}, false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	down, err := a.Download(context.Background(), results[0].Key, "", false)
	if err != nil || string(down.Content) != "Hello" {
		t.Fatalf("Download: %+v %v", down, err)
	}

	report, err := a.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Local != 2 || report.Removed != 1 || report.Refreshed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	records, _ := a.Ledger()
	if len(records) != 1 || records[0].Key != results[1].Key {
		t.Fatalf("unexpected ledger %+v", records)
	}
	got := rec.types()
	if got[len(got)-1] != publishers.EventExpired {
		t.Fatalf("expected trailing expired event, got %v", got)
	}
}

func TestPublishersFileWiresHTTPSink(t *testing.T) {
	var (
		mu     sync.Mutex
		events []publishers.Event
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil {
			mu.Lock()
			events = append(events, evt)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	pubFile := filepath.Join(t.TempDir(), "publishers.yaml")
	raw := "publishers:\n  - id: hook\n    type: http\n    http:\n      url: " + hook.URL + "\n"
	if err := os.WriteFile(pubFile, []byte(raw), 0o644); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}

	srv, _ := fileiotest.NewServer(testKey)
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	cfg.PublishersFile = pubFile
	cfg.LedgerType = config.LedgerNone

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Upload(context.Background(), []string{writeFile(t, "a.txt", "Hello")}, fileio.UploadParams{}, false); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Type != publishers.EventUploaded || events[0].Name != "a.txt" {
		t.Fatalf("unexpected hook events %+v", events)
	}
}

func TestNewRejectsBadPublishersFile(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.PublishersFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing publishers file")
	}
}
