package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsMultipartFieldsAndFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("expires"); got != "1d" {
			t.Errorf("expires = %q", got)
		}
		if _, ok := r.MultipartForm.Value["autoDelete"]; !ok {
			t.Errorf("expected empty autoDelete field to be sent")
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "Hello" || hdr.Filename != "a.txt" {
			t.Errorf("unexpected file %q (%s)", data, hdr.Filename)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("X-Echo", "ok")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Do(context.Background(), Request{
		Method:    http.MethodPost,
		URL:       srv.URL + "/",
		Headers:   map[string]string{"Authorization": "Bearer k"},
		Multipart: true,
		Form:      map[string]string{"expires": "1d", "autoDelete": ""},
		Files:     []FilePart{{Field: "file", FileName: "a.txt", Content: []byte("Hello")}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if resp.Header().Get("X-Echo") != "ok" {
		t.Fatalf("missing response header")
	}
	if string(resp.Body()) != `{"success":true}` {
		t.Fatalf("body = %s", resp.Body())
	}
}

func TestRestyClientEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search") != "txt" || q.Get("limit") != "5" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if _, ok := q["sort"]; ok {
			t.Errorf("sort should be absent")
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Do(context.Background(), Request{
		URL:   srv.URL,
		Query: map[string]string{"search": "txt", "limit": "5"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusNotFound {
		t.Fatalf("expected 404 passthrough, got %d", resp.StatusCode())
	}
}

func TestRestyClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewRestyClient(time.Second).Do(context.Background(), Request{URL: url}); err == nil {
		t.Fatalf("expected transport error for closed server")
	}
}

func TestRestyClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewRestyClient(0).Do(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
