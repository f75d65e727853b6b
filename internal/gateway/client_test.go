package gateway

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"proxylog/internal/api"
	"proxylog/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestIndexSendsFilterAndDecodes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != api.PathIndex {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get(api.ParamFilter); got != "$.path == '/x'" {
			t.Errorf("filter not forwarded: %q", got)
		}
		_ = json.NewEncoder(w).Encode(api.IndexResponse{
			Total: 3, TotalFiltered: 1, Hash: "h1",
			Entries: []model.IndexEntry{{UUID: "a", Offset: 0, SummaryText: "GET /x"}},
		})
	}))
	snap, err := c.Index(context.Background(), "$.path == '/x'")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if snap.Total != 3 || snap.TotalFiltered != 1 || snap.Hash != "h1" || len(snap.Entries) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestContentQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get(api.ParamFromOffset) != "10" || q.Get(api.ParamToOffset) != "12" {
			t.Errorf("bad range query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(api.ContentResponse{Messages: []model.ContentEntry{{Offset: 10, RenderedContent: "x"}, {Offset: 11, RenderedContent: "y"}}})
	}))
	got, err := c.Content(context.Background(), 10, 12, "")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if len(got) != 2 || got[1].Offset != 11 {
		t.Fatalf("unexpected content: %+v", got)
	}
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "fromOffset out of range"})
	}))
	_, err := c.Content(context.Background(), 0, 1, "")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest || se.Message != "fromOffset out of range" {
		t.Fatalf("unexpected status error: %+v", se)
	}
	if Transient(err) {
		t.Fatalf("400 must not be transient")
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("status code: %d", StatusCode(err))
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	_, err := c.Index(context.Background(), "")
	if !Transient(err) {
		t.Fatalf("502 should be transient: %v", err)
	}
	if IsCanceled(err) {
		t.Fatalf("502 is not a cancellation")
	}
}

func TestCancelledRequestIsDistinguishable(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Content(ctx, 0, 5, "")
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if !IsCanceled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		if Transient(err) {
			t.Fatalf("cancellation must not count as transient failure")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled request did not return")
	}
}

func TestImportCompressesPlainInput(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			t.Errorf("expected gzip upload")
		}
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip: %v", err)
			return
		}
		b, _ := io.ReadAll(zr)
		n := strings.Count(string(b), "\n")
		_ = json.NewEncoder(w).Encode(api.ImportResponse{Imported: n})
	}))
	n, err := c.Import(context.Background(), strings.NewReader("{\"uuid\":\"a\"}\n{\"uuid\":\"b\"}\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}
}

func TestExportStreamsBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("compressed-bytes"))
	}))
	var buf bytes.Buffer
	n, err := c.Export(context.Background(), "", &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != int64(len("compressed-bytes")) || buf.String() != "compressed-bytes" {
		t.Fatalf("unexpected export body %q (%d)", buf.String(), n)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("localhost:8080", 0); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}
