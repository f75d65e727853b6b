package queue

import (
	"context"
	"time"

	"proxylog/internal/debounce"
	"proxylog/internal/util/logx"
)

const (
	defaultScrollDebounce = 150 * time.Millisecond
	defaultScrollRetry    = 100 * time.Millisecond
	minJumpWindow         = 20
)

// scrollHost is what the coordinator needs from the manager.
type scrollHost interface {
	// lookup resolves uuid to its absolute offset under the current filter.
	lookup(uuid string) (offset int, ok bool)
	// ensureContent blocks until content for offset is cached or the fetch
	// for it settled.
	ensureContent(ctx context.Context, offset int)
	// visualIndex maps offset to the row the view shows it at.
	visualIndex(offset int) int
}

// ScrollCoordinator turns "jump to record" requests into a fetch followed by
// a scroll command and a single retry once the view had time to lay out.
type ScrollCoordinator struct {
	host     scrollHost
	onScroll func(visualIndex int)
	retry    time.Duration
	deb      *debounce.Debouncer
}

func newScrollCoordinator(ctx context.Context, host scrollHost, onScroll func(int), debounceDelay, retry time.Duration) *ScrollCoordinator {
	if debounceDelay <= 0 {
		debounceDelay = defaultScrollDebounce
	}
	if retry <= 0 {
		retry = defaultScrollRetry
	}
	return &ScrollCoordinator{
		host:     host,
		onScroll: onScroll,
		retry:    retry,
		deb:      debounce.New(ctx, debounceDelay),
	}
}

// ScrollTo schedules a jump to uuid. Rapid calls collapse to the last target.
func (s *ScrollCoordinator) ScrollTo(uuid string) {
	s.deb.Do(func(ctx context.Context) { s.resolve(ctx, uuid) })
}

func (s *ScrollCoordinator) resolve(ctx context.Context, uuid string) {
	offset, ok := s.host.lookup(uuid)
	if !ok {
		logx.Warnf("scroll: message %s is not in the current index", uuid)
		return
	}
	s.host.ensureContent(ctx, offset)
	if ctx.Err() != nil {
		return
	}
	s.scroll(offset)

	t := time.NewTimer(s.retry)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	s.scroll(offset)
}

func (s *ScrollCoordinator) scroll(offset int) {
	if s.onScroll == nil {
		return
	}
	s.onScroll(s.host.visualIndex(offset))
}

func (s *ScrollCoordinator) Stop() { s.deb.Stop() }
