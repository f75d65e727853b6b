package queue

import (
	"context"
	"net/http"
	"testing"

	"proxylog/internal/gateway"
)

func TestRefreshIsHashGated(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("", makeSnap("m", 3, "h1"))
	x := NewMetaIndex(gw, nil)
	ctx := context.Background()

	if o := x.Refresh(ctx, 0, ""); o != RefreshApplied {
		t.Fatalf("first poll: %v", o)
	}
	before := x.Snapshot()
	gw.setSnap("", makeSnap("other", 3, "h1"))
	if o := x.Refresh(ctx, 0, ""); o != RefreshUnchanged {
		t.Fatalf("same hash: %v", o)
	}
	after := x.Snapshot()
	if after.Hash != before.Hash || after.Entries[0].UUID != before.Entries[0].UUID {
		t.Fatalf("snapshot replaced despite equal hash")
	}
	gw.setSnap("", makeSnap("m", 4, "h2"))
	if o := x.Refresh(ctx, 0, ""); o != RefreshApplied {
		t.Fatalf("new hash: %v", o)
	}
	if x.Total() != 4 {
		t.Fatalf("total %d", x.Total())
	}
	if e, ok := x.Lookup("m-3"); !ok || e.Offset != 3 {
		t.Fatalf("lookup: %+v %v", e, ok)
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("", makeSnap("m", 2, "h1"))
	var sink sinkRecorder
	x := NewMetaIndex(gw, sink.sink)
	x.Refresh(context.Background(), 0, "")

	gw.indexErr = &gateway.StatusError{Op: "index", Code: http.StatusInternalServerError, Message: "down"}
	if o := x.Refresh(context.Background(), 0, ""); o != RefreshFailed {
		t.Fatalf("outcome: %v", o)
	}
	if x.Total() != 2 || x.Snapshot().Hash != "h1" {
		t.Fatalf("snapshot lost on failed poll")
	}
	if sink.count() != 1 || sink.codes[0] != http.StatusInternalServerError {
		t.Fatalf("sink: %v", sink.codes)
	}
}

func TestRefreshRejectsInconsistentSnapshot(t *testing.T) {
	gw := newFakeGateway()
	s := makeSnap("m", 3, "h1")
	s.TotalFiltered = 5
	gw.setSnap("", s)
	x := NewMetaIndex(gw, nil)
	if o := x.Refresh(context.Background(), 0, ""); o != RefreshFailed {
		t.Fatalf("outcome: %v", o)
	}
	if x.Applied() {
		t.Fatalf("inconsistent snapshot applied")
	}
}

func TestRefreshAfterResetIsStale(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("", makeSnap("m", 3, "h1"))
	gw.indexGate = make(chan struct{})
	var sink sinkRecorder
	x := NewMetaIndex(gw, sink.sink)
	outs := make(chan RefreshOutcome, 1)
	go func() { outs <- x.Refresh(context.Background(), 0, "") }()
	waitFor(t, "index call", func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.indexCalls == 1
	})
	x.Reset(1)
	close(gw.indexGate)
	if o := <-outs; o != RefreshStale {
		t.Fatalf("outcome: %v", o)
	}
	if x.Applied() || x.Total() != 0 {
		t.Fatalf("stale poll applied")
	}
	if sink.count() != 0 {
		t.Fatalf("stale poll reported: %v", sink.msgs)
	}
}
