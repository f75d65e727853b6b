// Package ingest feeds the backend store from a proxy NDJSON log: a file
// (optionally followed), stdin, or a synthetic demo source.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nxadm/tail"
)

type SourceKind string

const (
	SourceStdin SourceKind = "stdin"
	SourceFile  SourceKind = "file"
	SourceDemo  SourceKind = "demo"
)

type Options struct {
	Source         SourceKind
	Path           string
	Follow         bool
	FromStart      bool  // follow: read the existing file before tailing
	ScanBufSize    int   // per-line max (bytes)
	BlockSizeBytes int64 // only for non-follow file read; 0 = all
	DemoInterval   time.Duration
	DemoSeed       int64
}

type Line struct {
	Text   string
	Source string
	When   time.Time
}

// Read starts the source and returns its lines. Both channels are closed when
// the source ends or ctx is cancelled.
func Read(ctx context.Context, opt Options) (<-chan Line, <-chan error) {
	out := make(chan Line, 1024)
	errs := make(chan error, 16)
	if opt.ScanBufSize <= 0 {
		opt.ScanBufSize = 8 << 20
	}

	go func() {
		defer close(out)
		defer close(errs)

		switch opt.Source {
		case SourceStdin:
			readFromReader(ctx, os.Stdin, "stdin", opt.ScanBufSize, out, errs)
		case SourceFile:
			if opt.Follow {
				readFromTail(ctx, opt.Path, opt.FromStart, out, errs)
			} else if opt.BlockSizeBytes > 0 {
				readFromFileBlock(ctx, opt.Path, opt.BlockSizeBytes, opt.ScanBufSize, out, errs)
			} else {
				f, err := os.Open(opt.Path)
				if err != nil {
					errs <- err
					return
				}
				defer f.Close()
				readFromReader(ctx, f, opt.Path, opt.ScanBufSize, out, errs)
			}
		case SourceDemo:
			demo(ctx, opt.DemoInterval, opt.DemoSeed, out, errs)
		default:
			errs <- fmt.Errorf("unknown source kind %q", opt.Source)
		}
	}()

	return out, errs
}

func send(ctx context.Context, out chan<- Line, l Line) bool {
	select {
	case out <- l:
		return true
	case <-ctx.Done():
		return false
	}
}

func readFromReader(ctx context.Context, r io.Reader, src string, maxBuf int, out chan<- Line, errs chan<- error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*64)
	scanner.Buffer(buf, maxBuf)
	for scanner.Scan() {
		if !send(ctx, out, Line{Text: scanner.Text(), Source: src, When: time.Now()}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		errs <- fmt.Errorf("read %s: %w", src, err)
	}
}

func readFromTail(ctx context.Context, path string, fromStart bool, out chan<- Line, errs chan<- error) {
	loc := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	if fromStart {
		loc = &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
		Poll:      true,
		Location:  loc,
	})
	if err != nil {
		errs <- err
		return
	}
	defer t.Cleanup()
	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case l, ok := <-t.Lines:
			if !ok {
				return
			}
			if l.Err != nil {
				select {
				case errs <- l.Err:
				default:
				}
				continue
			}
			if !send(ctx, out, Line{Text: l.Text, Source: path, When: l.Time}) {
				t.Stop()
				return
			}
		}
	}
}

func readFromFileBlock(ctx context.Context, path string, blockBytes int64, maxBuf int, out chan<- Line, errs chan<- error) {
	f, err := os.Open(path)
	if err != nil {
		errs <- err
		return
	}
	defer f.Close()
	var start int64
	if st, err := f.Stat(); err == nil && st.Size() > blockBytes {
		start = st.Size() - blockBytes
	}
	if start == 0 {
		readFromReader(ctx, f, path, maxBuf, out, errs)
		return
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		errs <- err
		return
	}
	// drop the partial first line
	br := bufio.NewReader(f)
	if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		errs <- err
		return
	}
	readFromReader(ctx, br, path, maxBuf, out, errs)
}

func demo(ctx context.Context, every time.Duration, seed int64, out chan<- Line, errs chan<- error) {
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	gen := NewTraffic(seed)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rec := range gen.Next() {
				b, err := json.Marshal(rec)
				if err != nil {
					errs <- err
					return
				}
				if !send(ctx, out, Line{Text: string(b), Source: "demo", When: time.Now()}) {
					return
				}
			}
		}
	}
}
