package queue

import (
	"context"
	"net/http"
	"testing"
	"time"

	"proxylog/internal/gateway"
	"proxylog/internal/model"
)

func TestProbeCancellationIsNotReported(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("a", makeSnap("a", 4, "h"))
	gw.testGate = make(chan struct{})
	var sink sinkRecorder
	p := newProbe(context.Background(), gw, sink.sink, func() int { return 10 }, 0)

	errs := make(chan error, 1)
	go func() {
		_, err := p.TestFilter(context.Background(), "a", CallOptions{PropagateError: true})
		errs <- err
	}()
	waitFor(t, "first call", func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.testCalls) == 1
	})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gw.testGate)
	}()
	res, err := p.TestFilter(context.Background(), "a", CallOptions{})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if res.Matched != 4 || res.Total != 10 {
		t.Fatalf("result %+v", res)
	}
	if err := <-errs; !gateway.IsCanceled(err) {
		t.Fatalf("first call: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("cancellation reported: %v", sink.msgs)
	}
}

func TestProbeFailureIsReportedAndReturned(t *testing.T) {
	gw := newFakeGateway()
	gw.testErr = &gateway.StatusError{Op: "testFilter", Code: http.StatusBadGateway, Message: "upstream"}
	var sink sinkRecorder
	p := newProbe(context.Background(), gw, sink.sink, func() int { return 0 }, 0)
	if _, err := p.TestFilter(context.Background(), "x", CallOptions{PropagateError: true}); gateway.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("err %v", err)
	}
	if sink.count() != 1 || sink.codes[0] != http.StatusBadGateway {
		t.Fatalf("sink %v", sink.codes)
	}
	if _, err := p.TestFilter(context.Background(), "x", CallOptions{SuppressError: true, PropagateError: true}); err == nil {
		t.Fatalf("suppressed error must still be returned")
	}
	if sink.count() != 1 {
		t.Fatalf("suppressed error reached the sink")
	}
}

func TestProbeHonorsCallOptions(t *testing.T) {
	gw := newFakeGateway()
	gw.testErr = &gateway.StatusError{Op: "testFilter", Code: http.StatusBadGateway, Message: "upstream"}
	var sink sinkRecorder
	p := newProbe(context.Background(), gw, sink.sink, func() int { return 0 }, 0)
	if _, err := p.TestFilter(context.Background(), "x", CallOptions{}); err != nil {
		t.Fatalf("error returned without PropagateError: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("failure not reported: %v", sink.codes)
	}
	if _, err := p.TestFilter(context.Background(), "x", CallOptions{SuppressError: true}); err != nil || sink.count() != 1 {
		t.Fatalf("suppressed and not propagated: err %v sink %v", err, sink.codes)
	}
}

func TestProbeBadExpressionIsAResult(t *testing.T) {
	gw := newFakeGateway()
	p := newProbe(context.Background(), gw, nil, func() int { return 0 }, 0)
	res, err := p.TestFilter(context.Background(), "$.nope ==", CallOptions{})
	if err != nil || res.ErrorMessage == "" {
		t.Fatalf("res %+v err %v", res, err)
	}
}

func TestProbeDebouncedRunsLast(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("c", makeSnap("c", 2, "h"))
	p := newProbe(context.Background(), gw, nil, func() int { return 5 }, 20*time.Millisecond)
	got := make(chan model.FilterTestResult, 3)
	for _, e := range []string{"a", "b", "c"} {
		p.TestFilterDebounced(e, func(r model.FilterTestResult, err error) { got <- r })
	}
	select {
	case r := <-got:
		if r.Matched != 2 {
			t.Fatalf("result %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced call never ran")
	}
	time.Sleep(50 * time.Millisecond)
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.testCalls) != 1 || gw.testCalls[0] != "c" {
		t.Fatalf("calls %v", gw.testCalls)
	}
}

func TestSearchUsesCurrentFilter(t *testing.T) {
	gw := newFakeGateway()
	gw.setSnap("", makeSnap("m", 12, "h"))
	m := New(context.Background(), gw, Options{})
	defer m.Close()
	res, err := m.Search(context.Background(), "/m/1", CallOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// /m/1, /m/10, /m/11
	if len(res.Matches) != 3 {
		t.Fatalf("matches %d", len(res.Matches))
	}
}
