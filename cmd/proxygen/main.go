// Command proxygen writes synthetic proxy traffic as NDJSON, one record per
// line, for feeding proxylogd -file -follow or -stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"proxylog/internal/ingest"
)

func main() {
	var (
		rate     float64
		outPath  string
		duration time.Duration
		count    int
		seed     int64
	)
	flag.Float64Var(&rate, "rate", 5.0, "request/response exchanges per second")
	flag.StringVar(&outPath, "out", "", "output file (truncated); stdout when empty")
	flag.DurationVar(&duration, "duration", 0, "optional run duration (e.g. 30s, 2m); 0 runs until interrupted")
	flag.IntVar(&count, "count", 0, "stop after this many exchanges (0 = unlimited)")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = from clock)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
		fmt.Fprintf(os.Stderr, "generating traffic -> %s at %.2f exchanges/s\n", outPath, rate)
	}

	n, err := generate(ctx, out, ingest.NewTraffic(seed), rate, count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error after %d exchanges: %v\n", n, err)
		os.Exit(1)
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "wrote %d exchanges\n", n)
	}
}

// generate writes exchanges until ctx ends or count is reached. Every line is
// flushed so a follower sees it immediately.
func generate(ctx context.Context, out io.Writer, gen *ingest.Traffic, rate float64, count int) (int, error) {
	if rate <= 0 {
		rate = 1
	}
	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w := bufio.NewWriter(out)
	defer w.Flush()
	enc := json.NewEncoder(w)
	n := 0
	for count == 0 || n < count {
		select {
		case <-ctx.Done():
			return n, nil
		case <-ticker.C:
		}
		for _, rec := range gen.Next() {
			if err := enc.Encode(rec); err != nil {
				return n, err
			}
		}
		if err := w.Flush(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
