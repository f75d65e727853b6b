package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proxylog/internal/cancel"
	"proxylog/internal/debounce"
	"proxylog/internal/model"
)

const defaultProbeDebounce = 300 * time.Millisecond

// Probe runs the read-only filter test and search queries. Each kind keeps
// its own token so a new call cancels only the previous call of that kind.
// Probes never touch the index or the content arena.
type Probe struct {
	gw     Gateway
	report reporter
	total  func() int

	mu        sync.Mutex
	testTok   *cancel.Token
	searchTok *cancel.Token
	testDeb   *debounce.Debouncer
	searchDeb *debounce.Debouncer
}

func newProbe(ctx context.Context, gw Gateway, sink ErrorSink, total func() int, delay time.Duration) *Probe {
	if delay <= 0 {
		delay = defaultProbeDebounce
	}
	return &Probe{
		gw:        gw,
		report:    reporter{sink: sink},
		total:     total,
		testDeb:   debounce.New(ctx, delay),
		searchDeb: debounce.New(ctx, delay),
	}
}

// swap installs a fresh token in slot and cancels the one it replaces.
func (p *Probe) swap(ctx context.Context, slot **cancel.Token) *cancel.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	(*slot).Cancel()
	tok := cancel.New(ctx)
	*slot = tok
	return tok
}

func (p *Probe) settle(slot **cancel.Token, tok *cancel.Token) {
	p.mu.Lock()
	if *slot == tok {
		*slot = nil
	}
	p.mu.Unlock()
	tok.Release()
}

// TestFilter counts the records expr would match. A bad expression comes
// back in ErrorMessage. Transport failures are reported and returned as opts
// say; a superseded call is never reported, and with PropagateError it
// returns an error satisfying gateway.IsCanceled.
func (p *Probe) TestFilter(ctx context.Context, expr string, opts CallOptions) (model.FilterTestResult, error) {
	tok := p.swap(ctx, &p.testTok)
	defer p.settle(&p.testTok, tok)

	resp, err := p.gw.TestFilter(tok.Context(), expr)
	if err != nil {
		return model.FilterTestResult{}, p.report.handle(fmt.Sprintf("test filter %q", expr), err, opts)
	}
	return model.FilterTestResult{
		Matched:      resp.TotalFiltered,
		Total:        p.total(),
		ErrorMessage: resp.ErrorMessage,
	}, nil
}

// Search returns the entries under filter matching search.
func (p *Probe) Search(ctx context.Context, filter, search string, opts CallOptions) (model.SearchResult, error) {
	tok := p.swap(ctx, &p.searchTok)
	defer p.settle(&p.searchTok, tok)

	res, err := p.gw.Search(tok.Context(), filter, search)
	if err != nil {
		return model.SearchResult{}, p.report.handle(fmt.Sprintf("search %q filter=%q", search, filter), err, opts)
	}
	if res.Matches == nil {
		res.Matches = []model.IndexEntry{}
	}
	return res, nil
}

// TestFilterDebounced runs TestFilter after the quiet period and delivers
// the result to fn. Superseded calls never reach fn.
func (p *Probe) TestFilterDebounced(expr string, fn func(model.FilterTestResult, error)) {
	p.testDeb.Do(func(ctx context.Context) {
		res, err := p.TestFilter(ctx, expr, CallOptions{PropagateError: true})
		if ctx.Err() != nil {
			return
		}
		fn(res, err)
	})
}

func (p *Probe) SearchDebounced(filter, search string, fn func(model.SearchResult, error)) {
	p.searchDeb.Do(func(ctx context.Context) {
		res, err := p.Search(ctx, filter, search, CallOptions{PropagateError: true})
		if ctx.Err() != nil {
			return
		}
		fn(res, err)
	})
}

// Stop cancels pending and running probes.
func (p *Probe) Stop() {
	p.testDeb.Stop()
	p.searchDeb.Stop()
	p.mu.Lock()
	p.testTok.Cancel()
	p.searchTok.Cancel()
	p.mu.Unlock()
}
