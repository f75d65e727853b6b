// Package export implements the viewer's side channels: downloading the
// backend's log, writing the current index as CSV, and uploading a log.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"proxylog/internal/model"
)

type Format string

const (
	FormatGzip Format = "gz"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gz", "gzip", "ndjson":
		return FormatGzip, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want gz or csv)", s)
	}
}

// Exporter streams the backend's gzip NDJSON for a filter.
type Exporter interface {
	Export(ctx context.Context, filter string, w io.Writer) (int64, error)
}

// Importer uploads an NDJSON log, plain or gzip.
type Importer interface {
	Import(ctx context.Context, r io.Reader) (int, error)
}

// Download writes the backend export for filter to path. The file only
// appears once the download completed.
func Download(ctx context.Context, src Exporter, filter, path string) (int64, error) {
	var n int64
	err := writeAtomic(path, func(w io.Writer) error {
		var err error
		n, err = src.Export(ctx, filter, w)
		return err
	})
	return n, err
}

// Upload sends the log at path to the backend and returns how many records
// were added.
func Upload(ctx context.Context, dst Importer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return dst.Import(ctx, f)
}

var csvColumns = []string{"offset", "sequence", "uuid", "kind", "paired_uuid", "timestamp", "sender", "recipient", "summary", "details"}

// IndexCSV writes the index entries as CSV, one row per entry.
func IndexCSV(path string, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return errors.New("no entries")
	}
	return writeAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(csvColumns); err != nil {
			return err
		}
		for _, e := range entries {
			kind := "response"
			if e.IsRequest {
				kind = "request"
			}
			ts := ""
			if !e.Timestamp.IsZero() {
				ts = e.Timestamp.UTC().Format(time.RFC3339Nano)
			}
			row := []string{
				strconv.Itoa(e.Offset),
				strconv.FormatInt(e.SequenceNumber, 10),
				e.UUID,
				kind,
				e.PairedUUID,
				ts,
				e.Sender,
				e.Recipient,
				e.SummaryText,
				strings.Join(e.ExtraSummaryLines, "; "),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// DefaultName picks an output file name for format.
func DefaultName(f Format, now time.Time) string {
	stamp := now.UTC().Format("20060102-150405")
	if f == FormatCSV {
		return "proxylog-" + stamp + ".csv"
	}
	return "proxylog-" + stamp + ".ndjson.gz"
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
