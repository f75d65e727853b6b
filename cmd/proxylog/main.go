package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxylog/internal/config"
	"proxylog/internal/export"
	"proxylog/internal/gateway"
	"proxylog/internal/ui"
	"proxylog/internal/util/logx"
	"proxylog/internal/version"
)

func main() {
	logx.SetLevelFromEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		fmt.Println("proxylog", version.String())
		return
	}

	// Setup cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := gateway.NewClient(cfg.ServerURL, cfg.Timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}

	switch {
	case cfg.ExportFormat != "":
		if err := runExport(ctx, cfg, client); err != nil {
			fmt.Fprintln(os.Stderr, "export:", err)
			os.Exit(1)
		}
		return
	case cfg.ImportPath != "":
		n, err := export.Upload(ctx, client, cfg.ImportPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "imported %d records from %s\n", n, cfg.ImportPath)
		return
	}

	logx.Infof("starting proxylog %s: %s", version.String(), cfg.String())
	if err := ui.Run(ctx, cfg, client); err != nil {
		logx.Errorf("proxylog exited with error: %v", err)
		fmt.Fprintln(os.Stderr, "proxylog:", err)
		os.Exit(1)
	}
}

// runExport writes the log under cfg.Filter without starting the viewer.
func runExport(ctx context.Context, cfg *config.Config, client *gateway.Client) error {
	f, err := export.ParseFormat(cfg.ExportFormat)
	if err != nil {
		return err
	}
	out := cfg.ExportOut
	if out == "" {
		out = export.DefaultName(f, time.Now())
	}
	switch f {
	case export.FormatCSV:
		snap, err := client.Index(ctx, cfg.Filter)
		if err != nil {
			return err
		}
		if err := export.IndexCSV(out, snap.Entries); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(snap.Entries), out)
	default:
		n, err := export.Download(ctx, client, cfg.Filter, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, out)
	}
	return nil
}
