package parse

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"proxylog/internal/model"
)

// DefaultMaxLine bounds a single NDJSON record.
const DefaultMaxLine = 8 << 20

var ErrEmptyLine = errors.New("empty line")

// LineError is a malformed record; decoding can continue past it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Record decodes one NDJSON line. Besides the canonical field names it
// accepts the timestamp under "ts" or "time", and a body that is a JSON value
// rather than a string.
func Record(line string) (model.Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.Record{}, ErrEmptyLine
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return model.Record{}, fmt.Errorf("decode record: %w", err)
	}
	var r model.Record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		// body or timestamp in a non-canonical shape; fill them below
		r = model.Record{}
		decodeLoose(m, &r)
	}
	if r.Timestamp.IsZero() {
		if ts := getStringPaths(m, []string{"timestamp", "ts", "time"}); ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				r.Timestamp = t
			}
		}
	}
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	return r, nil
}

// decodeLoose fills r field by field, tolerating a structured body.
func decodeLoose(m map[string]json.RawMessage, r *model.Record) {
	str := func(key string) string {
		var s string
		if raw, ok := m[key]; ok {
			_ = json.Unmarshal(raw, &s)
		}
		return s
	}
	num := func(key string) int64 {
		raw, ok := m[key]
		if !ok {
			return 0
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			v, _ := strconv.ParseInt(n.String(), 10, 64)
			return v
		}
		if s := str(key); s != "" {
			v, _ := strconv.ParseInt(s, 10, 64)
			return v
		}
		return 0
	}
	r.UUID = str("uuid")
	r.Sequence = num("sequenceNumber")
	if raw, ok := m["isRequest"]; ok {
		_ = json.Unmarshal(raw, &r.IsRequest)
	}
	r.PairedUUID = str("pairedUuid")
	r.PairedSequence = num("pairedSequenceNumber")
	r.Sender = str("sender")
	r.Recipient = str("recipient")
	r.Method = str("method")
	r.Path = str("path")
	r.Status = int(num("status"))
	if raw, ok := m["headers"]; ok {
		hs := map[string]any{}
		if json.Unmarshal(raw, &hs) == nil {
			r.Headers = make(map[string]string, len(hs))
			for k, v := range hs {
				r.Headers[k] = fmt.Sprint(v)
			}
		}
	}
	if raw, ok := m["body"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			r.Body = s
		} else {
			r.Body = string(raw)
		}
	}
}

// Decoder reads NDJSON records from a stream, transparently inflating gzip
// input.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

func NewDecoder(r io.Reader, maxLine int) (*Decoder, error) {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		src = zr
	}
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Decoder{sc: sc}, nil
}

// Next returns the next record. Blank lines are skipped; a malformed line is
// returned as a *LineError. io.EOF marks the end of input.
func (d *Decoder) Next() (model.Record, error) {
	for d.sc.Scan() {
		d.line++
		rec, err := Record(d.sc.Text())
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			return model.Record{}, &LineError{Line: d.line, Err: err}
		}
		return rec, nil
	}
	if err := d.sc.Err(); err != nil {
		return model.Record{}, err
	}
	return model.Record{}, io.EOF
}

func getStringPaths(m map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}
	return ""
}
