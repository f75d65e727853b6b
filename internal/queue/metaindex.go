package queue

import (
	"context"
	"fmt"
	"sync"

	"proxylog/internal/api"
	"proxylog/internal/cancel"
	"proxylog/internal/gateway"
	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

// Epoch identifies the filter whose offset space a fetch belongs to. It
// increases on every filter change.
type Epoch uint64

// Gateway is the subset of the backend client the queue depends on.
type Gateway interface {
	Index(ctx context.Context, filter string) (model.IndexSnapshot, error)
	Content(ctx context.Context, from, to int, filter string) ([]model.ContentEntry, error)
	TestFilter(ctx context.Context, filter string) (api.TestFilterResponse, error)
	Search(ctx context.Context, filter, search string) (model.SearchResult, error)
}

type RefreshOutcome int

const (
	RefreshApplied RefreshOutcome = iota
	// RefreshUnchanged means the server hash equals the applied one.
	RefreshUnchanged
	// RefreshStale means the filter changed or the poll was cancelled while
	// it was in flight; the result was dropped.
	RefreshStale
	RefreshFailed
)

func (o RefreshOutcome) String() string {
	switch o {
	case RefreshApplied:
		return "applied"
	case RefreshUnchanged:
		return "unchanged"
	case RefreshStale:
		return "stale"
	default:
		return "failed"
	}
}

// MetaIndex owns the index snapshot for the current filter.
type MetaIndex struct {
	gw     Gateway
	report reporter

	mu       sync.RWMutex
	epoch    Epoch
	snap     model.IndexSnapshot
	applied  bool
	byUUID   map[string]int
	inflight *cancel.Token
}

func NewMetaIndex(gw Gateway, sink ErrorSink) *MetaIndex {
	return &MetaIndex{gw: gw, report: reporter{sink: sink}, byUUID: map[string]int{}}
}

// Reset drops the snapshot and cancels a poll in flight. Only polls issued
// under epoch may apply afterwards.
func (x *MetaIndex) Reset(epoch Epoch) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.inflight != nil {
		x.inflight.Cancel()
		x.inflight = nil
	}
	x.epoch = epoch
	x.snap = model.IndexSnapshot{Entries: []model.IndexEntry{}}
	x.applied = false
	x.byUUID = map[string]int{}
}

// Refresh polls the index for filter and applies the result if it belongs to
// the current epoch and its hash differs from the applied one. Failures are
// reported to the sink and leave the previous snapshot in place.
func (x *MetaIndex) Refresh(ctx context.Context, epoch Epoch, filter string) RefreshOutcome {
	x.mu.Lock()
	if epoch != x.epoch {
		x.mu.Unlock()
		return RefreshStale
	}
	tok := cancel.New(ctx)
	if x.inflight != nil {
		x.inflight.Cancel()
	}
	x.inflight = tok
	x.mu.Unlock()

	snap, err := x.gw.Index(tok.Context(), filter)
	if err == nil {
		err = validateSnapshot(snap)
	}
	out := x.apply(tok, epoch, filter, snap, err)
	if out == RefreshFailed {
		x.report.handle(fmt.Sprintf("index poll filter=%q", filter), err, CallOptions{})
	}
	return out
}

func (x *MetaIndex) apply(tok *cancel.Token, epoch Epoch, filter string, snap model.IndexSnapshot, err error) RefreshOutcome {
	x.mu.Lock()
	defer x.mu.Unlock()
	defer tok.Release()
	if x.inflight == tok {
		x.inflight = nil
	}
	if tok.Cancelled() || epoch != x.epoch || gateway.IsCanceled(err) {
		return RefreshStale
	}
	if err != nil {
		return RefreshFailed
	}
	if x.applied && snap.Hash == x.snap.Hash {
		return RefreshUnchanged
	}
	byUUID := make(map[string]int, len(snap.Entries))
	for _, e := range snap.Entries {
		byUUID[e.UUID] = e.Offset
	}
	x.snap = snap
	x.byUUID = byUUID
	x.applied = true
	logx.Debugf("index: applied filter=%q total=%d filtered=%d hash=%s", filter, snap.Total, snap.TotalFiltered, snap.Hash)
	return RefreshApplied
}

// validateSnapshot enforces that the entry list matches the reported count
// and is addressed by consecutive offsets.
func validateSnapshot(s model.IndexSnapshot) error {
	if len(s.Entries) != s.TotalFiltered {
		return &gateway.StatusError{Op: "index", Message: fmt.Sprintf("server sent %d entries for totalFiltered=%d", len(s.Entries), s.TotalFiltered)}
	}
	for i, e := range s.Entries {
		if e.Offset != i {
			return &gateway.StatusError{Op: "index", Message: fmt.Sprintf("entry %d has offset %d", i, e.Offset)}
		}
	}
	return nil
}

// Snapshot returns the applied snapshot. Entries must not be modified.
func (x *MetaIndex) Snapshot() model.IndexSnapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snap
}

// Total is the number of records matching the current filter.
func (x *MetaIndex) Total() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.snap.Entries)
}

func (x *MetaIndex) Applied() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.applied
}

func (x *MetaIndex) Entry(offset int) (model.IndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if offset < 0 || offset >= len(x.snap.Entries) {
		return model.IndexEntry{}, false
	}
	return x.snap.Entries[offset], true
}

func (x *MetaIndex) Lookup(uuid string) (model.IndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	off, ok := x.byUUID[uuid]
	if !ok {
		return model.IndexEntry{}, false
	}
	return x.snap.Entries[off], true
}
