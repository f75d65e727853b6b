package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxylog/internal/config"
	"proxylog/internal/ingest"
	"proxylog/internal/server"
	"proxylog/internal/store"
	"proxylog/internal/util/logx"
	"proxylog/internal/version"
)

func main() {
	// the daemon has no terminal UI, so its log goes to stderr
	logx.SetMirror(os.Stderr)
	logx.SetLevelFromEnv()
	cfg, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Println("proxylogd", version.String())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logx.Errorf("proxylogd: %v", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.ServerConfig) (store.Store, error) {
	if cfg.Store == config.StoreSQLite {
		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return store.NewMemoryStore(), nil
}

func ingestOptions(cfg *config.ServerConfig) ingest.Options {
	opt := ingest.Options{
		Path:           cfg.FilePath,
		Follow:         cfg.Follow,
		FromStart:      cfg.FromStart,
		BlockSizeBytes: int64(cfg.BlockSizeMB) << 20,
		DemoInterval:   cfg.DemoInterval(),
	}
	switch {
	case cfg.FilePath != "":
		opt.Source = ingest.SourceFile
	case cfg.UseStdin:
		opt.Source = ingest.SourceStdin
	default:
		opt.Source = ingest.SourceDemo
	}
	return opt
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ictx, stopIngest := context.WithCancel(ctx)
	lines, errs := ingest.Read(ictx, ingestOptions(cfg))
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		stats, err := ingest.Pump(ictx, lines, errs, st)
		if err != nil && !errors.Is(err, context.Canceled) {
			logx.Warnf("ingest stopped: %v", err)
		}
		logx.Infof("ingest: %d lines, %d added, %d skipped", stats.Lines, stats.Added, stats.Skipped)
	}()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(st),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()
	logx.Infof("proxylogd %s listening: %s", version.String(), cfg.String())

	var serveErr error
	select {
	case err := <-served:
		serveErr = err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Warnf("shutdown: %v", err)
		}
	}

	// the store must outlive the pump
	stopIngest()
	<-pumped
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
