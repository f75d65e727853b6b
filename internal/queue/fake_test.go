package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"proxylog/internal/api"
	"proxylog/internal/model"
)

type contentCall struct {
	from, to int
	filter   string
	release  chan struct{}
}

// fakeGateway serves canned snapshots per filter. With block set, content
// calls wait for release or cancellation.
type fakeGateway struct {
	mu         sync.Mutex
	snaps      map[string]model.IndexSnapshot
	indexErr   error
	indexGate  chan struct{}
	indexCalls int

	block      bool
	contentErr error
	calls      []*contentCall
	started    chan *contentCall

	testGate  chan struct{}
	testErr   error
	testCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{snaps: map[string]model.IndexSnapshot{}, started: make(chan *contentCall, 64)}
}

func makeSnap(prefix string, n int, hash string) model.IndexSnapshot {
	entries := make([]model.IndexEntry, n)
	for i := range entries {
		entries[i] = model.IndexEntry{
			UUID:           fmt.Sprintf("%s-%d", prefix, i),
			Offset:         i,
			SequenceNumber: int64(i + 1),
			SummaryText:    fmt.Sprintf("GET /%s/%d", prefix, i),
		}
	}
	return model.IndexSnapshot{Total: n, TotalFiltered: n, Hash: hash, Entries: entries}
}

func rendered(filter string, off int) string {
	return fmt.Sprintf("filter=%s offset=%d", filter, off)
}

func (g *fakeGateway) setSnap(filter string, s model.IndexSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snaps[filter] = s
}

func (g *fakeGateway) Index(ctx context.Context, filter string) (model.IndexSnapshot, error) {
	g.mu.Lock()
	g.indexCalls++
	gate, err, snap := g.indexGate, g.indexErr, g.snaps[filter]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.IndexSnapshot{}, ctx.Err()
		}
	}
	if err != nil {
		return model.IndexSnapshot{}, err
	}
	if snap.Entries == nil {
		snap.Entries = []model.IndexEntry{}
	}
	return snap, nil
}

func (g *fakeGateway) Content(ctx context.Context, from, to int, filter string) ([]model.ContentEntry, error) {
	c := &contentCall{from: from, to: to, filter: filter, release: make(chan struct{})}
	g.mu.Lock()
	g.calls = append(g.calls, c)
	block, err := g.block, g.contentErr
	g.mu.Unlock()
	g.started <- c
	if block {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.ContentEntry, 0, to-from)
	for off := from; off < to; off++ {
		out = append(out, model.ContentEntry{Offset: off, RenderedContent: rendered(filter, off)})
	}
	return out, nil
}

func (g *fakeGateway) TestFilter(ctx context.Context, filter string) (api.TestFilterResponse, error) {
	g.mu.Lock()
	g.testCalls = append(g.testCalls, filter)
	gate, err := g.testGate, g.testErr
	snap, ok := g.snaps[filter]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.TestFilterResponse{}, ctx.Err()
		}
	}
	if err != nil {
		return api.TestFilterResponse{}, err
	}
	if !ok {
		return api.TestFilterResponse{ErrorMessage: "unknown filter"}, nil
	}
	return api.TestFilterResponse{TotalFiltered: snap.TotalFiltered}, nil
}

func (g *fakeGateway) Search(ctx context.Context, filter, search string) (model.SearchResult, error) {
	g.mu.Lock()
	snap := g.snaps[filter]
	g.mu.Unlock()
	res := model.SearchResult{}
	for _, e := range snap.Entries {
		if strings.Contains(e.SummaryText, search) {
			res.Matches = append(res.Matches, e)
		}
	}
	return res, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func nextCall(t *testing.T, g *fakeGateway) *contentCall {
	t.Helper()
	select {
	case c := <-g.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no content call issued")
		return nil
	}
}

func noCall(t *testing.T, g *fakeGateway, wait time.Duration) {
	t.Helper()
	select {
	case c := <-g.started:
		t.Fatalf("unexpected content call [%d,%d) filter=%q", c.from, c.to, c.filter)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type sinkRecorder struct {
	mu    sync.Mutex
	codes []int
	msgs  []string
}

func (s *sinkRecorder) sink(msg string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	s.codes = append(s.codes, code)
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
