package server

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"proxylog/internal/api"
	"proxylog/internal/filter"
	"proxylog/internal/model"
	"proxylog/internal/parse"
	"proxylog/internal/render"
	"proxylog/internal/util/logx"
)

const importBatch = 500

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get(api.ParamFilter)
	s.mu.Lock()
	v, err := s.viewLocked(r.Context(), expr)
	if err != nil {
		s.mu.Unlock()
		s.fail(w, err)
		return
	}
	resp := api.IndexResponse{
		Total:         len(s.recs),
		TotalFiltered: len(v.pos),
		Hash:          v.hash(expr, len(s.recs)),
		Entries:       v.entries[:len(v.entries):len(v.entries)],
	}
	s.mu.Unlock()
	if resp.Entries == nil {
		resp.Entries = []model.IndexEntry{}
	}
	writeJSON(w, resp)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expr := q.Get(api.ParamFilter)
	from, err1 := strconv.Atoi(q.Get(api.ParamFromOffset))
	to, err2 := strconv.Atoi(q.Get(api.ParamToOffset))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "fromOffset and toOffsetExcluding must be integers")
		return
	}
	s.mu.Lock()
	v, err := s.viewLocked(r.Context(), expr)
	if err != nil {
		s.mu.Unlock()
		s.fail(w, err)
		return
	}
	if from < 0 || to > len(v.pos) || from >= to {
		total := len(v.pos)
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range [%d,%d) outside [0,%d)", from, to, total))
		return
	}
	out := api.ContentResponse{Messages: make([]model.ContentEntry, 0, to-from)}
	for off := from; off < to; off++ {
		out.Messages = append(out.Messages, model.ContentEntry{Offset: off, RenderedContent: render.Content(s.recs[v.pos[off]])})
	}
	s.mu.Unlock()
	s.metrics.contentWindow.Observe(float64(to - from))
	writeJSON(w, out)
}

// handleTestFilter reports a bad expression in the body, not as an HTTP
// error: the caller is probing.
func (s *Server) handleTestFilter(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get(api.ParamFilter)
	f, err := filter.Compile(expr)
	if err != nil {
		writeJSON(w, api.TestFilterResponse{ErrorMessage: err.Error()})
		return
	}
	s.mu.Lock()
	if err := s.syncLocked(r.Context()); err != nil {
		s.mu.Unlock()
		s.fail(w, err)
		return
	}
	var n int
	if v, ok := s.views[expr]; ok && v.scanned == len(s.recs) {
		n = len(v.pos)
	} else {
		for _, rec := range s.recs {
			if f.Match(rec) {
				n++
			}
		}
	}
	s.mu.Unlock()
	writeJSON(w, api.TestFilterResponse{TotalFiltered: n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expr := q.Get(api.ParamFilter)
	search, err := filter.NewSearch(q.Get(api.ParamSearch))
	if err != nil {
		writeJSON(w, api.SearchResponse{Matches: []model.IndexEntry{}, ErrorMessage: err.Error()})
		return
	}
	s.mu.Lock()
	v, err := s.viewLocked(r.Context(), expr)
	if err != nil {
		s.mu.Unlock()
		var bad *badRequest
		if errors.As(err, &bad) {
			writeJSON(w, api.SearchResponse{Matches: []model.IndexEntry{}, ErrorMessage: err.Error()})
			return
		}
		s.fail(w, err)
		return
	}
	out := api.SearchResponse{Matches: []model.IndexEntry{}}
	if !search.Empty() {
		for off, p := range v.pos {
			rec := s.recs[p]
			e := v.entries[off]
			texts := append([]string{e.SummaryText, rec.Path, rec.Body}, e.ExtraSummaryLines...)
			for _, k := range rec.HeaderNames() {
				texts = append(texts, rec.Headers[k])
			}
			if search.Match(texts...) {
				out.Matches = append(out.Matches, e)
			}
		}
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

// handleExport streams the records matching filter as gzip NDJSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get(api.ParamFilter)
	s.mu.Lock()
	v, err := s.viewLocked(r.Context(), expr)
	if err != nil {
		s.mu.Unlock()
		s.fail(w, err)
		return
	}
	recs := make([]model.Record, len(v.pos))
	for i, p := range v.pos {
		recs[i] = s.recs[p]
	}
	s.mu.Unlock()

	name := fmt.Sprintf("proxylog-%s.ndjson.gz", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			logx.Warnf("export: %v", err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		logx.Warnf("export: %v", err)
	}
}

// handleImport appends an NDJSON upload. Records without a uuid get one;
// malformed lines are skipped and logged.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "gzip: "+err.Error())
			return
		}
		defer zr.Close()
		body = zr
	}
	dec, err := parse.NewDecoder(body, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var (
		batch    []model.Record
		imported int
		skipped  int
	)
	flush := func() error {
		n, err := s.store.Append(r.Context(), batch...)
		imported += n
		batch = batch[:0]
		return err
	}
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var le *parse.LineError
			if !errors.As(err, &le) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			skipped++
			logx.Warnf("import: %v", err)
			continue
		}
		if rec.UUID == "" {
			rec.UUID = uuid.NewString()
		}
		batch = append(batch, rec)
		if len(batch) >= importBatch {
			if err := flush(); err != nil {
				s.fail(w, err)
				return
			}
		}
	}
	if err := flush(); err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.recordsImported.Add(float64(imported))
	logx.Infof("import: %d records added, %d skipped", imported, skipped)
	writeJSON(w, api.ImportResponse{Imported: imported})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var bad *badRequest
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logx.Errorf("http: %v", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
