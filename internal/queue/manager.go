// Package queue keeps a scrollable, filterable view of a remote proxy log
// consistent while the index is polled and content is fetched window by
// window.
package queue

import (
	"context"
	"sync"
	"time"

	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

const defaultPollInterval = time.Second

type Options struct {
	PollInterval     time.Duration
	ScrollDebounce   time.Duration
	ScrollRetry      time.Duration
	ProbeDebounce    time.Duration
	MaxCachedContent int

	// Filter and Reversed are the initial view settings.
	Filter   string
	Reversed bool

	// OnError receives every failure the user should see.
	OnError ErrorSink
	// OnScroll asks the view to bring a visual row into view.
	OnScroll func(visualIndex int)
}

// Stats summarizes the manager for status lines.
type Stats struct {
	Epoch         Epoch
	Filter        string
	Reversed      bool
	Total         int
	TotalFiltered int
	Cached        int
	Fetching      bool
	Polled        bool
}

// Manager is the surface the view talks to. It owns the filter epoch, the
// index poll loop and the last reported viewport.
type Manager struct {
	ctx  context.Context
	stop context.CancelFunc
	opts Options

	meta    *MetaIndex
	content *ContentWindow
	scroll  *ScrollCoordinator
	probe   *Probe

	mu        sync.RWMutex
	epoch     Epoch
	filter    string
	reversed  bool
	viewStart int
	viewEnd   int
	hasView   bool

	changes   chan struct{}
	kick      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New builds a manager. Polling starts with Start.
func New(ctx context.Context, gw Gateway, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	ctx, stop := context.WithCancel(ctx)
	m := &Manager{
		ctx:      ctx,
		stop:     stop,
		opts:     opts,
		filter:   opts.Filter,
		reversed: opts.Reversed,
		changes:  make(chan struct{}, 1),
		kick:     make(chan struct{}, 1),
	}
	m.meta = NewMetaIndex(gw, opts.OnError)
	m.content = NewContentWindow(gw, opts.OnError, opts.MaxCachedContent)
	m.content.retryAfter = opts.PollInterval
	m.scroll = newScrollCoordinator(ctx, m, opts.OnScroll, opts.ScrollDebounce, opts.ScrollRetry)
	m.probe = newProbe(ctx, gw, opts.OnError, func() int { return m.meta.Snapshot().Total }, opts.ProbeDebounce)
	return m
}

// Start launches the poll loop. The first poll runs immediately.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.pollLoop()
	})
}

// Close stops polling and cancels every call in flight.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.stop()
		m.scroll.Stop()
		m.probe.Stop()
		m.wg.Wait()
	})
}

// Changes signals that Records may have changed. Signals coalesce.
func (m *Manager) Changes() <-chan struct{} { return m.changes }

func (m *Manager) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Manager) kickPoll() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// pollLoop re-arms the timer only after the previous poll settled, so polls
// never overlap.
func (m *Manager) pollLoop() {
	defer m.wg.Done()
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
		case <-m.kick:
			t.Stop()
		}
		m.poll()
		t.Reset(m.opts.PollInterval)
	}
}

func (m *Manager) poll() {
	m.mu.RLock()
	epoch, filter := m.epoch, m.filter
	m.mu.RUnlock()

	applied := m.meta.Refresh(m.ctx, epoch, filter) == RefreshApplied
	if applied {
		m.notify()
	}
	// a viewport whose fetch failed transiently is retried once per period
	m.mu.Lock()
	if epoch == m.epoch && (applied || m.content.retryDue()) {
		m.requestViewportLocked()
	}
	m.mu.Unlock()
}

// SetFilter switches to expr. The epoch bump and the reset of both stores
// happen before any fetch for the new filter can be issued.
func (m *Manager) SetFilter(expr string) {
	m.mu.Lock()
	if expr == m.filter {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.filter = expr
	m.meta.Reset(m.epoch)
	m.content.Reset(m.epoch)
	epoch := m.epoch
	m.mu.Unlock()

	logx.Infof("queue: filter %q (epoch %d)", expr, epoch)
	m.notify()
	m.kickPoll()
}

func (m *Manager) Filter() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter
}

// SetReversed flips the read-time order. It never fetches; the view reports
// its new viewport afterwards.
func (m *Manager) SetReversed(reversed bool) {
	m.mu.Lock()
	changed := m.reversed != reversed
	m.reversed = reversed
	m.mu.Unlock()
	if changed {
		m.notify()
	}
}

func (m *Manager) Reversed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reversed
}

// ReportViewportRange records the visible visual rows [start, end) and
// fetches their content.
func (m *Manager) ReportViewportRange(start, end int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewStart, m.viewEnd, m.hasView = start, end, true
	m.requestViewportLocked()
}

func (m *Manager) requestViewportLocked() {
	if !m.hasView {
		return
	}
	total := m.meta.Total()
	from, to, ok := VisualRange(m.viewStart, m.viewEnd, m.reversed, total)
	if !ok {
		return
	}
	_, _ = m.content.Issue(m.ctx, m.epoch, from, to, total, m.filter, m.contentSettled)
}

func (m *Manager) contentSettled(o Outcome) {
	if o == OutcomeApplied || o == OutcomeFailed {
		m.notify()
	}
}

// ScrollToMessage jumps to the record with uuid once its content is loaded.
func (m *Manager) ScrollToMessage(uuid string) { m.scroll.ScrollTo(uuid) }

// Retry clears failed rows, refetches the viewport and polls the index now.
func (m *Manager) Retry() {
	m.content.ClearFailures()
	m.mu.Lock()
	m.requestViewportLocked()
	m.mu.Unlock()
	m.notify()
	m.kickPoll()
}

func (m *Manager) Snapshot() model.IndexSnapshot { return m.meta.Snapshot() }

// Len is the number of records under the current filter.
func (m *Manager) Len() int { return m.meta.Total() }

// Records returns the whole visible sequence in visual order.
func (m *Manager) Records() []model.DisplayRecord {
	return m.Window(0, m.meta.Total())
}

// Window returns the visual rows [start, end), clamped.
func (m *Manager) Window(start, end int) []model.DisplayRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.meta.Snapshot()
	total := len(snap.Entries)
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if start >= end {
		return []model.DisplayRecord{}
	}
	recs := make([]model.DisplayRecord, end-start)
	for i := range recs {
		e := snap.Entries[VisualToOffset(start+i, m.reversed, total)]
		recs[i] = model.DisplayRecord{
			State:          model.StatePending,
			Offset:         e.Offset,
			UUID:           e.UUID,
			SequenceNumber: e.SequenceNumber,
			Index:          e,
		}
	}
	m.content.fill(m.epoch, recs)
	return recs
}

// Record returns visual row i.
func (m *Manager) Record(i int) (model.DisplayRecord, bool) {
	recs := m.Window(i, i+1)
	if len(recs) == 0 {
		return model.DisplayRecord{}, false
	}
	return recs[0], true
}

// VisualIndexOf returns the row uuid is shown at.
func (m *Manager) VisualIndexOf(uuid string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.meta.Lookup(uuid)
	if !ok {
		return 0, false
	}
	return OffsetToVisual(e.Offset, m.reversed, m.meta.Total()), true
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.meta.Snapshot()
	_, _, fetching := m.content.InFlight()
	return Stats{
		Epoch:         m.epoch,
		Filter:        m.filter,
		Reversed:      m.reversed,
		Total:         snap.Total,
		TotalFiltered: len(snap.Entries),
		Cached:        m.content.Len(),
		Fetching:      fetching,
		Polled:        m.meta.Applied(),
	}
}

// TestFilter evaluates expr against the log without changing the view.
func (m *Manager) TestFilter(ctx context.Context, expr string, opts CallOptions) (model.FilterTestResult, error) {
	return m.probe.TestFilter(ctx, expr, opts)
}

func (m *Manager) TestFilterDebounced(expr string, fn func(model.FilterTestResult, error)) {
	m.probe.TestFilterDebounced(expr, fn)
}

// Search finds records under the current filter matching search.
func (m *Manager) Search(ctx context.Context, search string, opts CallOptions) (model.SearchResult, error) {
	return m.probe.Search(ctx, m.Filter(), search, opts)
}

func (m *Manager) SearchDebounced(search string, fn func(model.SearchResult, error)) {
	m.probe.SearchDebounced(m.Filter(), search, fn)
}

// scrollHost

func (m *Manager) lookup(uuid string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.meta.Lookup(uuid)
	return e.Offset, ok
}

func (m *Manager) visualIndex(offset int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return OffsetToVisual(offset, m.reversed, m.meta.Total())
}

func (m *Manager) ensureContent(ctx context.Context, offset int) {
	m.mu.Lock()
	if m.content.Has(m.epoch, offset) {
		m.mu.Unlock()
		return
	}
	total := m.meta.Total()
	if offset >= total {
		m.mu.Unlock()
		return
	}
	size := m.viewEnd - m.viewStart
	if !m.hasView || size < minJumpWindow {
		size = minJumpWindow
	}
	from, to := centerWindow(offset, size, total)
	wait, _, err := m.content.prepare(ctx, m.epoch, from, to, total, m.filter)
	m.mu.Unlock()
	if err != nil || wait == nil {
		return
	}
	if wait() == OutcomeApplied {
		m.notify()
	}
}
