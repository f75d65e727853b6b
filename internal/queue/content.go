package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"proxylog/internal/cancel"
	"proxylog/internal/gateway"
	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

const (
	defaultMaxCachedContent = 5000
	// defaultContentRetry is how long a transiently failed range is left
	// alone before the same range may be fetched again.
	defaultContentRetry = time.Second
)

type Outcome int

const (
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means an identical request was in flight or had just
	// completed; no network call was made.
	OutcomeSkipped
	// OutcomeCancelled means the fetch was superseded, the filter changed, or
	// the owner shut down. It is a no-op, never an error.
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

type span struct {
	from, to int
	epoch    Epoch
}

type fetch struct {
	id     uint64
	span   span
	filter string
	token  *cancel.Token
	done   chan struct{}
}

// ContentWindow owns rendered content for the offsets the viewport asked for.
// At most one fetch is in flight; issuing another cancels it.
type ContentWindow struct {
	gw        Gateway
	report    reporter
	maxCached int

	mu       sync.Mutex
	epoch    Epoch
	arena    map[int]string
	failed   map[int]string
	inflight *fetch
	last     *span
	nextID   uint64

	// the most recent failed fetch; a permanent failure blocks its range
	// until ClearFailures, a transient one for retryAfter
	failedSpan      *span
	failedTransient bool
	failedAt        time.Time
	retryAfter      time.Duration
}

func NewContentWindow(gw Gateway, sink ErrorSink, maxCached int) *ContentWindow {
	if maxCached <= 0 {
		maxCached = defaultMaxCachedContent
	}
	return &ContentWindow{
		gw:        gw,
		report:    reporter{sink: sink},
		maxCached:  maxCached,
		arena:      map[int]string{},
		failed:     map[int]string{},
		retryAfter: defaultContentRetry,
	}
}

// Reset switches to epoch: the in-flight fetch is cancelled and the arena is
// replaced, so nothing fetched earlier can be attributed to the new epoch.
func (w *ContentWindow) Reset(epoch Epoch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight != nil {
		w.inflight.token.Cancel()
		w.inflight = nil
	}
	w.epoch = epoch
	w.arena = map[int]string{}
	w.failed = map[int]string{}
	w.last = nil
	w.failedSpan = nil
}

// Request fetches [from, to) and blocks until the fetch settles.
func (w *ContentWindow) Request(ctx context.Context, epoch Epoch, from, to, total int, filter string) (Outcome, error) {
	wait, out, err := w.prepare(ctx, epoch, from, to, total, filter)
	if wait == nil {
		return out, err
	}
	return wait(), nil
}

// Issue registers the fetch synchronously, so issue order decides which
// request wins, and runs it in the background. done, if non-nil, receives the
// outcome once the fetch settles.
func (w *ContentWindow) Issue(ctx context.Context, epoch Epoch, from, to, total int, filter string, done func(Outcome)) (Outcome, error) {
	wait, out, err := w.prepare(ctx, epoch, from, to, total, filter)
	if wait == nil {
		return out, err
	}
	go func() {
		o := wait()
		if done != nil {
			done(o)
		}
	}()
	return out, nil
}

// prepare validates the range, suppresses identical requests and registers
// a new fetch, cancelling the one in flight. The returned wait runs the fetch
// (or waits for the identical one already running); it is nil when there is
// nothing to wait for.
func (w *ContentWindow) prepare(ctx context.Context, epoch Epoch, from, to, total int, filter string) (wait func() Outcome, out Outcome, err error) {
	if from < 0 || to > total || from >= to {
		rerr := &RangeError{From: from, To: to, Total: total}
		logx.Errorf("content: contract violation: %v filter=%q", rerr, filter)
		return nil, OutcomeFailed, rerr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return nil, OutcomeCancelled, nil
	}
	s := span{from: from, to: to, epoch: epoch}
	if f := w.inflight; f != nil && f.span == s {
		return func() Outcome {
			select {
			case <-f.done:
			case <-ctx.Done():
			}
			return OutcomeSkipped
		}, OutcomeSkipped, nil
	}
	if w.last != nil && *w.last == s {
		return nil, OutcomeSkipped, nil
	}
	if fs := w.failedSpan; fs != nil && *fs == s {
		if !w.failedTransient || time.Since(w.failedAt) < w.retryAfter {
			return nil, OutcomeSkipped, nil
		}
	}
	if w.inflight != nil {
		logx.Debugf("content: cancel [%d,%d) superseded by [%d,%d)", w.inflight.span.from, w.inflight.span.to, from, to)
		w.inflight.token.Cancel()
	}
	w.nextID++
	f := &fetch{id: w.nextID, span: s, filter: filter, token: cancel.New(ctx), done: make(chan struct{})}
	w.inflight = f
	return func() Outcome { return w.run(f) }, OutcomeApplied, nil
}

func (w *ContentWindow) run(f *fetch) Outcome {
	entries, err := w.gw.Content(f.token.Context(), f.span.from, f.span.to, f.filter)
	out := w.apply(f, entries, err)
	if out == OutcomeFailed {
		w.report.handle(fmt.Sprintf("content [%d,%d)", f.span.from, f.span.to), err, CallOptions{})
	}
	return out
}

func (w *ContentWindow) apply(f *fetch, entries []model.ContentEntry, err error) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer close(f.done)
	defer f.token.Release()
	current := w.inflight == f
	if current {
		w.inflight = nil
	}
	if !current || f.token.Cancelled() || f.span.epoch != w.epoch || gateway.IsCanceled(err) {
		logx.Debugf("content: fetch #%d [%d,%d) dropped", f.id, f.span.from, f.span.to)
		return OutcomeCancelled
	}
	if err != nil {
		w.failLocked(f, err)
		return OutcomeFailed
	}
	for _, e := range entries {
		if e.Offset < f.span.from || e.Offset >= f.span.to {
			logx.Warnf("content: dropping offset %d outside requested [%d,%d)", e.Offset, f.span.from, f.span.to)
			continue
		}
		w.arena[e.Offset] = e.RenderedContent
		delete(w.failed, e.Offset)
	}
	s := f.span
	w.last = &s
	w.failedSpan = nil
	w.evictLocked(s)
	return OutcomeApplied
}

// failLocked records a failed fetch. Transient failures leave the rows
// pending and allow the same range again after retryAfter; permanent ones
// mark the rows failed and block the range until ClearFailures.
func (w *ContentWindow) failLocked(f *fetch, err error) {
	status := gateway.StatusCode(err)
	transient := gateway.Transient(err)
	logx.Warnf("content: fetch [%d,%d) filter=%q status=%d transient=%v: %v", f.span.from, f.span.to, f.filter, status, transient, err)
	s := f.span
	w.failedSpan, w.failedTransient, w.failedAt = &s, transient, time.Now()
	if transient {
		return
	}
	for off := f.span.from; off < f.span.to; off++ {
		if _, ok := w.arena[off]; !ok {
			w.failed[off] = err.Error()
		}
	}
}

// evictLocked keeps the arena bounded, dropping the offsets farthest from
// the range just applied.
func (w *ContentWindow) evictLocked(keep span) {
	excess := len(w.arena) - w.maxCached
	if excess <= 0 {
		return
	}
	dist := func(off int) int {
		if off < keep.from {
			return keep.from - off
		}
		if off >= keep.to {
			return off - keep.to + 1
		}
		return 0
	}
	offs := make([]int, 0, len(w.arena))
	for off := range w.arena {
		if dist(off) > 0 {
			offs = append(offs, off)
		}
	}
	sort.Slice(offs, func(i, j int) bool { return dist(offs[i]) > dist(offs[j]) })
	if excess > len(offs) {
		excess = len(offs)
	}
	for _, off := range offs[:excess] {
		delete(w.arena, off)
	}
}

// ClearFailures forgets failed rows and the last completed range so the next
// request for them goes to the network again.
func (w *ContentWindow) ClearFailures() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed = map[int]string{}
	w.last = nil
	w.failedSpan = nil
}

// retryDue reports whether a transiently failed range may be fetched again
// and nothing else is in flight.
func (w *ContentWindow) retryDue() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inflight == nil && w.failedSpan != nil && w.failedTransient &&
		time.Since(w.failedAt) >= w.retryAfter
}

// Has reports whether content for offset is cached under epoch.
func (w *ContentWindow) Has(epoch Epoch, offset int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return false
	}
	_, ok := w.arena[offset]
	return ok
}

// Len is the number of cached entries.
func (w *ContentWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.arena)
}

// InFlight reports the range of the fetch in flight, if any.
func (w *ContentWindow) InFlight() (from, to int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight == nil {
		return 0, 0, false
	}
	return w.inflight.span.from, w.inflight.span.to, true
}

// fill resolves pending records against the arena when epoch is current.
func (w *ContentWindow) fill(epoch Epoch, recs []model.DisplayRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return
	}
	for i := range recs {
		off := recs[i].Offset
		if c, ok := w.arena[off]; ok {
			recs[i].State = model.StateReady
			recs[i].RenderedContent = c
			continue
		}
		if msg, ok := w.failed[off]; ok {
			recs[i].State = model.StateFailed
			recs[i].ErrorText = msg
		}
	}
}
