// Package server is the log backend: it serves the index, content, probe and
// export/import endpoints over a record store.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proxylog/internal/api"
	"proxylog/internal/filter"
	"proxylog/internal/model"
	"proxylog/internal/render"
	"proxylog/internal/store"
	"proxylog/internal/util/logx"
)

// maxViews bounds the number of filters whose offset tables are cached.
const maxViews = 32

// view is the offset table of one filter: pos[offset] is the position of the
// record in the store.
type view struct {
	filter  *filter.Filter
	scanned int
	pos     []int
	entries []model.IndexEntry
	used    time.Time
}

// Server handles API requests.
type Server struct {
	store   store.Store
	metrics *Metrics
	reg     *prometheus.Registry

	mu    sync.Mutex
	recs  []model.Record
	views map[string]*view

	mux *http.ServeMux
}

// New creates a server over st with its own metrics registry.
func New(st store.Store) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		store:   st,
		metrics: NewMetrics(reg),
		reg:     reg,
		views:   map[string]*view{},
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET "+api.PathIndex, s.instrument("index", s.handleIndex))
	s.mux.Handle("GET "+api.PathContent, s.instrument("content", s.handleContent))
	s.mux.Handle("GET "+api.PathTestFilter, s.instrument("testFilter", s.handleTestFilter))
	s.mux.Handle("GET "+api.PathSearch, s.instrument("search", s.handleSearch))
	s.mux.Handle("GET "+api.PathExport, s.instrument("export", s.handleExport))
	s.mux.Handle("POST "+api.PathImport, s.instrument("import", s.handleImport))
	s.mux.Handle("GET "+api.PathMetrics, promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET "+api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// sync pulls records appended to the store since the last call.
func (s *Server) syncLocked(ctx context.Context) error {
	n, err := s.store.Len(ctx)
	if err != nil {
		return err
	}
	if n <= len(s.recs) {
		return nil
	}
	err = s.store.Scan(ctx, len(s.recs), func(r model.Record) bool {
		s.recs = append(s.recs, r)
		return true
	})
	s.metrics.records.Set(float64(len(s.recs)))
	return err
}

// viewLocked returns the up-to-date view for expr. A bad expression is
// returned as an error for the caller to report.
func (s *Server) viewLocked(ctx context.Context, expr string) (*view, error) {
	if err := s.syncLocked(ctx); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	v, ok := s.views[expr]
	if !ok {
		f, err := filter.Compile(expr)
		if err != nil {
			return nil, &badRequest{err}
		}
		if len(s.views) >= maxViews {
			s.evictViewLocked()
		}
		v = &view{filter: f}
		s.views[expr] = v
		s.metrics.views.Set(float64(len(s.views)))
	}
	for p := v.scanned; p < len(s.recs); p++ {
		if v.filter.Match(s.recs[p]) {
			v.entries = append(v.entries, render.IndexEntry(s.recs[p], len(v.pos)))
			v.pos = append(v.pos, p)
		}
	}
	v.scanned = len(s.recs)
	v.used = time.Now()
	return v, nil
}

func (s *Server) evictViewLocked() {
	var oldest string
	var at time.Time
	for k, v := range s.views {
		if oldest == "" || v.used.Before(at) {
			oldest, at = k, v.used
		}
	}
	delete(s.views, oldest)
}

// hash identifies the state of a view. It changes whenever the set of
// matching records or the overall record count changes.
func (v *view) hash(expr string, total int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%d\x00%d", expr, total, len(v.pos))
	if n := len(v.entries); n > 0 {
		fmt.Fprintf(h, "\x00%s", v.entries[n-1].UUID)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		s.metrics.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		logx.Debugf("http: %s %s -> %d (%s)", r.Method, r.URL.RequestURI(), rec.code, time.Since(start).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Warnf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
