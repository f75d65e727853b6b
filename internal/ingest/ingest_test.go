package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proxylog/internal/model"
	"proxylog/internal/store"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "proxy.ndjson")
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPumpFileIntoStore(t *testing.T) {
	path := writeLog(t,
		`{"uuid":"a","isRequest":true,"method":"GET","path":"/x","pairedUuid":"b"}`,
		`garbage`,
		``,
		`{"uuid":"b","status":200,"pairedUuid":"a"}`,
		`{"isRequest":true,"method":"POST","path":"/y"}`,
	)
	st := store.NewMemoryStore()
	lines, errs := Read(context.Background(), Options{Source: SourceFile, Path: path})
	stats, err := Pump(context.Background(), lines, errs, st)
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	if stats.Added != 3 || stats.Skipped != 1 {
		t.Fatalf("stats %+v", stats)
	}
	var got []model.Record
	st.Scan(context.Background(), 0, func(r model.Record) bool { got = append(got, r); return true })
	if got[0].UUID != "a" || got[1].PairedUUID != "a" || got[2].UUID == "" {
		t.Fatalf("records %+v", got)
	}
}

func TestPumpReportsMissingFile(t *testing.T) {
	lines, errs := Read(context.Background(), Options{Source: SourceFile, Path: filepath.Join(t.TempDir(), "nope")})
	if _, err := Pump(context.Background(), lines, errs, store.NewMemoryStore()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestBlockReadDropsPartialLine(t *testing.T) {
	path := writeLog(t,
		`{"uuid":"first","path":"/aaaaaaaaaaaaaaaaaaaaaaaa"}`,
		`{"uuid":"second"}`,
		`{"uuid":"third"}`,
	)
	lines, _ := Read(context.Background(), Options{Source: SourceFile, Path: path, BlockSizeBytes: 40})
	var got []string
	for l := range lines {
		got = append(got, l.Text)
	}
	if len(got) != 2 || !strings.Contains(got[0], "second") {
		t.Fatalf("lines %q", got)
	}
}

func TestDemoEmitsPairs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := Read(ctx, Options{Source: SourceDemo, DemoInterval: time.Millisecond, DemoSeed: 7})
	var recs []model.Record
	for l := range lines {
		var r model.Record
		if err := json.Unmarshal([]byte(l.Text), &r); err != nil {
			t.Fatalf("demo line: %v", err)
		}
		recs = append(recs, r)
		if len(recs) == 4 {
			cancel()
			break
		}
	}
	for i := 0; i < 4; i += 2 {
		req, resp := recs[i], recs[i+1]
		if !req.IsRequest || resp.IsRequest {
			t.Fatalf("pair %d order: %+v %+v", i, req, resp)
		}
		if req.PairedUUID != resp.UUID || resp.PairedUUID != req.UUID {
			t.Fatalf("pair %d not linked", i)
		}
		if resp.Sequence != req.Sequence+1 || resp.PairedSequence != req.Sequence {
			t.Fatalf("pair %d sequences %d %d", i, req.Sequence, resp.Sequence)
		}
	}
}

func TestTrafficDeterministicShape(t *testing.T) {
	a, b := NewTraffic(42), NewTraffic(42)
	for i := 0; i < 20; i++ {
		pa, pb := a.Next(), b.Next()
		if pa[0].Path != pb[0].Path || pa[1].Status != pb[1].Status {
			t.Fatalf("seeded generators diverged at %d", i)
		}
		if pa[1].Status == 0 || pa[0].Method == "" {
			t.Fatalf("incomplete pair %+v", pa)
		}
	}
}
