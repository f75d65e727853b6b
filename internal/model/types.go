package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Record is one captured message as the proxy writes it: a request or the
// response paired with it. Records are stored one per NDJSON line.
type Record struct {
	UUID           string            `json:"uuid"`
	Sequence       int64             `json:"sequenceNumber"`
	IsRequest      bool              `json:"isRequest"`
	PairedUUID     string            `json:"pairedUuid,omitempty"`
	PairedSequence int64             `json:"pairedSequenceNumber,omitempty"`
	Sender         string            `json:"sender"`
	Recipient      string            `json:"recipient"`
	Timestamp      time.Time         `json:"timestamp"`
	Method         string            `json:"method,omitempty"`
	Path           string            `json:"path,omitempty"`
	Status         int               `json:"status,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
}

// Fields flattens the record into the parameter map filter expressions are
// evaluated against. Header names are lower-cased under "headers.".
func (r Record) Fields() map[string]any {
	f := map[string]any{
		"uuid":                 r.UUID,
		"sequenceNumber":       float64(r.Sequence),
		"isRequest":            r.IsRequest,
		"pairedUuid":           r.PairedUUID,
		"pairedSequenceNumber": float64(r.PairedSequence),
		"sender":               r.Sender,
		"recipient":            r.Recipient,
		"timestamp":            r.Timestamp.Format(time.RFC3339Nano),
		"method":               r.Method,
		"path":                 r.Path,
		"status":               float64(r.Status),
		"body":                 r.Body,
	}
	for k, v := range r.Headers {
		f["headers."+strings.ToLower(k)] = v
	}
	var js any
	if strings.HasPrefix(strings.TrimSpace(r.Body), "{") && json.Unmarshal([]byte(r.Body), &js) == nil {
		if m, ok := js.(map[string]any); ok {
			for k, v := range m {
				f["json."+k] = v
			}
		}
	}
	return f
}

// HeaderNames returns header keys in a stable order for rendering.
func (r Record) HeaderNames() []string {
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IndexEntry is the lightweight, per-record summary served by the index
// endpoint. Offset is the record's position within the current filter.
type IndexEntry struct {
	UUID                 string    `json:"uuid"`
	Offset               int       `json:"offset"`
	SequenceNumber       int64     `json:"sequenceNumber"`
	IsRequest            bool      `json:"isRequest"`
	PairedUUID           string    `json:"pairedUuid,omitempty"`
	PairedSequenceNumber int64     `json:"pairedSequenceNumber,omitempty"`
	Sender               string    `json:"sender"`
	Recipient            string    `json:"recipient"`
	Timestamp            time.Time `json:"timestamp"`
	SummaryText          string    `json:"summaryText"`
	ExtraSummaryLines    []string  `json:"extraSummaryLines,omitempty"`
}

// ContentEntry is the fully rendered payload for one offset.
type ContentEntry struct {
	Offset          int    `json:"offset"`
	RenderedContent string `json:"renderedContent"`
}

// IndexSnapshot is one index poll result for a filter.
type IndexSnapshot struct {
	Total         int          `json:"total"`
	TotalFiltered int          `json:"totalFiltered"`
	Hash          string       `json:"hash"`
	Entries       []IndexEntry `json:"messages"`
}

type FilterTestResult struct {
	Matched      int    `json:"matched"`
	Total        int    `json:"total"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type SearchResult struct {
	Matches      []IndexEntry `json:"messages"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

type RecordState int

const (
	StatePending RecordState = iota
	StateFailed
	StateReady
)

func (s RecordState) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateReady:
		return "ready"
	default:
		return "pending"
	}
}

// DisplayRecord is one row of the visible sequence. It is derived on read by
// joining an IndexEntry with the ContentEntry at the same offset and is never
// stored.
type DisplayRecord struct {
	State           RecordState
	Offset          int
	UUID            string
	SequenceNumber  int64
	ErrorText       string // StateFailed only
	RenderedContent string // StateReady only
	Index           IndexEntry
}

func (d DisplayRecord) Ready() bool { return d.State == StateReady }
