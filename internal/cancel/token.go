// Package cancel provides the revocable token carried by every asynchronous
// backend call.
package cancel

import (
	"context"
	"sync/atomic"
)

// Token is a one-shot cancellation handle. Its Context is passed to the
// network layer; Cancel revokes it and Cancelled reports whether that happened.
type Token struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	released  atomic.Bool
}

// New derives a token from parent. Cancelling the parent cancels the token.
func New(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

func (t *Token) Context() context.Context { return t.ctx }

func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.cancel()
}

// Cancelled reports whether Cancel was called or the parent context is done.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	if t.cancelled.Load() {
		return true
	}
	return !t.released.Load() && t.ctx.Err() != nil
}

// Release frees the context resources without marking the token cancelled.
// Call it once the guarded operation has settled.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.released.Store(true)
	t.cancel()
}
