package cancel

import (
	"context"
	"testing"
)

func TestTokenCancel(t *testing.T) {
	tok := New(context.Background())
	if tok.Cancelled() {
		t.Fatalf("fresh token reports cancelled")
	}
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatalf("expected cancelled after Cancel")
	}
	if tok.Context().Err() == nil {
		t.Fatalf("context not cancelled")
	}
}

func TestTokenParentCancel(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	tok := New(parent)
	stop()
	if !tok.Cancelled() {
		t.Fatalf("expected parent cancellation to propagate")
	}
}

func TestTokenReleaseIsNotCancel(t *testing.T) {
	tok := New(context.Background())
	tok.Release()
	if tok.Cancelled() {
		t.Fatalf("released token must not report cancelled")
	}
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatalf("cancel after release should still mark the token")
	}
}

func TestNilToken(t *testing.T) {
	var tok *Token
	tok.Cancel()
	tok.Release()
	if tok.Cancelled() {
		t.Fatalf("nil token reports cancelled")
	}
}
