package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	for _, k := range []string{"PROXYLOG_SERVER", "PROXYLOG_POLL", "PROXYLOG_THEME", "PROXYLOG_MAX_CACHED"} {
		t.Setenv(k, "")
	}
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:8428" || cfg.Poll != time.Second || cfg.Theme != ThemeDark || cfg.MaxCached != 5000 {
		t.Fatalf("defaults: %s max=%d", cfg, cfg.MaxCached)
	}
}

func TestParseEnvAndFlags(t *testing.T) {
	t.Setenv("PROXYLOG_SERVER", "http://logs:9000")
	t.Setenv("PROXYLOG_POLL", "250ms")
	t.Setenv("PROXYLOG_MAX_CACHED", "not-a-number")
	cfg, err := Parse([]string{"-filter", "status >= 500", "-reversed", "-theme", "light"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ServerURL != "http://logs:9000" || cfg.Poll != 250*time.Millisecond || cfg.MaxCached != 5000 {
		t.Fatalf("env: %s max=%d", cfg, cfg.MaxCached)
	}
	if cfg.Filter != "status >= 500" || !cfg.Reversed || cfg.Theme != ThemeLight {
		t.Fatalf("flags: %s", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-theme", "neon"},
		{"-poll", "1ms"},
		{"-export", "csv", "-import", "x.ndjson"},
		{"stray"},
	} {
		if _, err := Parse(args); err == nil {
			t.Errorf("Parse(%q) accepted", args)
		}
	}
}

func TestParseServer(t *testing.T) {
	cfg, err := ParseServer([]string{"-file", "proxy.ndjson", "-follow", "-store", "sqlite", "-db", "x.db"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Demo || !cfg.Follow || cfg.Store != StoreSQLite || cfg.DBPath != "x.db" || !cfg.FromStart {
		t.Fatalf("config %s", cfg)
	}

	demo, err := ParseServer([]string{"-demo", "-demo-rate", "4"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !demo.Demo || demo.DemoInterval() != 250*time.Millisecond {
		t.Fatalf("demo %s interval %s", demo, demo.DemoInterval())
	}
}

func TestParseServerRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-follow", "-demo"},
		{"-store", "redis", "-demo"},
		{"-file", "a", "-stdin"},
		{"-demo", "-demo-rate", "0"},
	} {
		if _, err := ParseServer(args); err == nil {
			t.Errorf("ParseServer(%q) accepted", args)
		}
	}
}
