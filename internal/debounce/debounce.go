// Package debounce collapses bursts of calls into the last one.
package debounce

import (
	"context"
	"sync"
	"time"

	"proxylog/internal/cancel"
)

// Debouncer runs the most recently scheduled function after a quiet period.
// Scheduling a new function stops the pending timer and cancels the context
// of a function that is already running.
type Debouncer struct {
	parent context.Context
	delay  time.Duration

	mu    sync.Mutex
	timer *time.Timer
	token *cancel.Token
}

func New(parent context.Context, delay time.Duration) *Debouncer {
	if parent == nil {
		parent = context.Background()
	}
	return &Debouncer{parent: parent, delay: delay}
}

// Do schedules fn. fn receives a context that is cancelled when a later Do
// or Stop supersedes it.
func (d *Debouncer) Do(fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	tok := cancel.New(d.parent)
	d.token = tok
	d.timer = time.AfterFunc(d.delay, func() {
		if tok.Cancelled() {
			return
		}
		fn(tok.Context())
		d.mu.Lock()
		if d.token == tok {
			d.token = nil
			d.timer = nil
		}
		d.mu.Unlock()
		tok.Release()
	})
}

// Stop drops the pending call and cancels a running one.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.token != nil {
		d.token.Cancel()
		d.token = nil
	}
}
