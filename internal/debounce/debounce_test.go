package debounce

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDebouncerRunsOnlyLast(t *testing.T) {
	d := New(context.Background(), 30*time.Millisecond)
	var mu sync.Mutex
	got := []int{}
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		i := i
		d.Do(func(ctx context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			done <- struct{}{}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("debounced call never ran")
	}
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected only the last call, got %v", got)
	}
}

func TestDebouncerCancelsRunningCall(t *testing.T) {
	d := New(context.Background(), 5*time.Millisecond)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	d.Do(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started
	d.Do(func(ctx context.Context) {})
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("running call was not cancelled by a newer one")
	}
}

func TestDebouncerStop(t *testing.T) {
	d := New(context.Background(), 20*time.Millisecond)
	ran := make(chan struct{}, 1)
	d.Do(func(ctx context.Context) { ran <- struct{}{} })
	d.Stop()
	select {
	case <-ran:
		t.Fatalf("stopped call ran")
	case <-time.After(60 * time.Millisecond):
	}
}
