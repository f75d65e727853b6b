package export

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proxylog/internal/model"
)

type fakeBackend struct {
	data     string
	err      error
	filter   string
	uploaded string
}

func (f *fakeBackend) Export(ctx context.Context, filter string, w io.Writer) (int64, error) {
	f.filter = filter
	n, _ := io.WriteString(w, f.data)
	return int64(n), f.err
}

func (f *fakeBackend) Import(ctx context.Context, r io.Reader) (int, error) {
	b, err := io.ReadAll(r)
	f.uploaded = string(b)
	return strings.Count(f.uploaded, "\n"), err
}

func TestDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson.gz")
	b := &fakeBackend{data: "payload"}
	n, err := Download(context.Background(), b, "isRequest", path)
	if err != nil || n != 7 {
		t.Fatalf("download: %d %v", n, err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "payload" || b.filter != "isRequest" {
		t.Fatalf("file %q filter %q", got, b.filter)
	}
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ndjson.gz")
	b := &fakeBackend{data: "partial", err: errors.New("connection reset")}
	if _, err := Download(context.Background(), b, "", path); err == nil {
		t.Fatalf("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.ndjson")
	os.WriteFile(path, []byte("{}\n{}\n"), 0o644)
	b := &fakeBackend{}
	n, err := Upload(context.Background(), b, path)
	if err != nil || n != 2 {
		t.Fatalf("upload: %d %v", n, err)
	}
}

func TestIndexCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	entries := []model.IndexEntry{
		{Offset: 0, SequenceNumber: 1, UUID: "a", IsRequest: true, PairedUUID: "b", SummaryText: "→ GET /x", Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{Offset: 1, SequenceNumber: 2, UUID: "b", PairedUUID: "a", SummaryText: "← 200 OK, fine", ExtraSummaryLines: []string{"application/json", "12 bytes"}},
	}
	if err := IndexCSV(path, entries); err != nil {
		t.Fatalf("csv: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "offset" {
		t.Fatalf("rows %v", rows)
	}
	if rows[1][3] != "request" || rows[1][5] != "2025-01-01T12:00:00Z" || rows[2][8] != "← 200 OK, fine" || rows[2][9] != "application/json; 12 bytes" {
		t.Fatalf("rows %v", rows)
	}
	if err := IndexCSV(path, nil); err == nil {
		t.Fatalf("empty index accepted")
	}
}

func TestParseFormat(t *testing.T) {
	if f, _ := ParseFormat("CSV"); f != FormatCSV {
		t.Fatalf("csv: %q", f)
	}
	if f, _ := ParseFormat(""); f != FormatGzip {
		t.Fatalf("default: %q", f)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("xml accepted")
	}
}
