// Package render turns proxy records into the summary and content text the
// backend serves.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"proxylog/internal/model"
)

// maxBody bounds the body shown in rendered content.
const maxBody = 64 << 10

// Summary is the one-line description of a record plus optional extra lines.
func Summary(r model.Record) (string, []string) {
	var b strings.Builder
	if r.IsRequest {
		fmt.Fprintf(&b, "→ %s %s", orDash(r.Method), orDash(r.Path))
	} else {
		fmt.Fprintf(&b, "← %d %s", r.Status, http.StatusText(r.Status))
		if r.Path != "" {
			fmt.Fprintf(&b, " %s", r.Path)
		}
	}
	var extra []string
	if ct := header(r, "Content-Type"); ct != "" {
		extra = append(extra, ct)
	}
	if n := len(r.Body); n > 0 {
		extra = append(extra, fmt.Sprintf("%d bytes", n))
	}
	return b.String(), extra
}

// IndexEntry builds the index entry for r at offset.
func IndexEntry(r model.Record, offset int) model.IndexEntry {
	summary, extra := Summary(r)
	return model.IndexEntry{
		UUID:                 r.UUID,
		Offset:               offset,
		SequenceNumber:       r.Sequence,
		IsRequest:            r.IsRequest,
		PairedUUID:           r.PairedUUID,
		PairedSequenceNumber: r.PairedSequence,
		Sender:               r.Sender,
		Recipient:            r.Recipient,
		Timestamp:            r.Timestamp,
		SummaryText:          summary,
		ExtraSummaryLines:    extra,
	}
}

// Content renders r as an HTTP message: start line, headers, blank line and
// body. JSON bodies are indented.
func Content(r model.Record) string {
	var b strings.Builder
	if r.IsRequest {
		fmt.Fprintf(&b, "%s %s HTTP/1.1\n", orDash(r.Method), orDash(r.Path))
	} else {
		fmt.Fprintf(&b, "HTTP/1.1 %d %s\n", r.Status, http.StatusText(r.Status))
	}
	for _, k := range r.HeaderNames() {
		fmt.Fprintf(&b, "%s: %s\n", k, r.Headers[k])
	}
	fmt.Fprintf(&b, "X-Proxylog-Route: %s -> %s\n", orDash(r.Sender), orDash(r.Recipient))
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(&b, "X-Proxylog-Time: %s\n", r.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("\n")
	b.WriteString(Body(r.Body))
	return b.String()
}

// Body pretty-prints JSON and truncates oversized payloads.
func Body(body string) string {
	t := strings.TrimSpace(body)
	if t == "" {
		return ""
	}
	if (strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")) && json.Valid([]byte(t)) {
		var out bytes.Buffer
		if json.Indent(&out, []byte(t), "", "  ") == nil {
			t = out.String()
		}
	}
	if len(t) > maxBody {
		return t[:maxBody] + fmt.Sprintf("\n… %d bytes truncated", len(t)-maxBody)
	}
	return t
}

func header(r model.Record, name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
