package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Config is the viewer's configuration.
type Config struct {
	ServerURL        string
	Filter           string
	Reversed         bool
	Poll             time.Duration
	Timeout          time.Duration
	MaxCached        int
	Theme            Theme
	Offline          bool
	OpenAIModel      string
	OpenAIBase       string
	OpenAITimeoutSec int
	ExportFormat     string
	ExportOut        string
	ImportPath       string
	ShowVersion      bool
}

var viewerUsage = heredoc.Doc(`
	Usage: proxylog [flags]

	Browse the request/response log served by proxylogd.

	Keys: / search, n/N next/previous match, f filter, F clear filter,
	p paired message, r reverse, R retry failed rows, enter details, c copy,
	i explain, e/E export index/log, L app logs, ? help, q quit.

	Flags:
`)

var serverUsage = heredoc.Doc(`
	Usage: proxylogd [flags]

	Serve a proxy NDJSON log to proxylog viewers. Without -file or -stdin a
	demo traffic source is used.

	Flags:
`)

func Load() (*Config, error) { return Parse(os.Args[1:]) }

// Parse reads viewer flags from args, with PROXYLOG_* environment defaults.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("proxylog", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usage(fs, viewerUsage)

	fs.StringVar(&cfg.ServerURL, "server", getenvDefault("PROXYLOG_SERVER", "http://127.0.0.1:8428"), "backend base URL")
	fs.StringVar(&cfg.Filter, "filter", "", "initial filter expression")
	fs.BoolVar(&cfg.Reversed, "reversed", false, "show newest messages first")
	fs.DurationVar(&cfg.Poll, "poll", getenvDefaultDuration("PROXYLOG_POLL", time.Second), "index poll interval")
	fs.DurationVar(&cfg.Timeout, "timeout", getenvDefaultDuration("PROXYLOG_TIMEOUT", 30*time.Second), "per-request timeout (0 = none)")
	fs.IntVar(&cfg.MaxCached, "max-cached", getenvDefaultInt("PROXYLOG_MAX_CACHED", 5000), "rendered messages kept in memory")
	theme := string(ThemeDark)
	fs.StringVar(&theme, "theme", getenvDefault("PROXYLOG_THEME", string(ThemeDark)), "theme: dark|light")
	fs.BoolVar(&cfg.Offline, "offline", false, "disable OpenAI explanations")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", getenvDefault("PROXYLOG_OPENAI_MODEL", "gpt-5-mini"), "OpenAI model override")
	fs.StringVar(&cfg.OpenAIBase, "openai-base-url", getenvDefault("PROXYLOG_OPENAI_BASE_URL", ""), "OpenAI base URL override")
	fs.IntVar(&cfg.OpenAITimeoutSec, "openai-timeout-sec", getenvDefaultInt("PROXYLOG_OPENAI_TIMEOUT_SEC", 120), "OpenAI request timeout in seconds")
	fs.StringVar(&cfg.ExportFormat, "export", "", "export the filtered log and exit: gz|csv")
	fs.StringVar(&cfg.ExportOut, "out", "", "output path for -export")
	fs.StringVar(&cfg.ImportPath, "import", "", "upload an NDJSON log (plain or gzip) to the backend and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	cfg.Theme = Theme(theme)
	if cfg.Theme != ThemeDark && cfg.Theme != ThemeLight {
		return nil, fmt.Errorf("unknown theme %q", theme)
	}
	if cfg.Poll < 50*time.Millisecond {
		return nil, errors.New("--poll must be at least 50ms")
	}
	if cfg.ExportFormat != "" && cfg.ImportPath != "" {
		return nil, errors.New("--export and --import are exclusive")
	}
	if cfg.MaxCached < 100 {
		cfg.MaxCached = 100
	}
	return cfg, nil
}

func (c *Config) OpenAIKey() string { return os.Getenv("OPENAI_API_KEY") }

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAITimeoutSec) * time.Second
}

func (c *Config) String() string {
	return fmt.Sprintf("server=%s filter=%q reversed=%v poll=%s theme=%s offline=%v", c.ServerURL, c.Filter, c.Reversed, c.Poll, c.Theme, c.Offline)
}

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreSQLite StoreKind = "sqlite"
)

// ServerConfig is the backend daemon's configuration.
type ServerConfig struct {
	Listen      string
	FilePath    string
	UseStdin    bool
	Follow      bool
	FromStart   bool
	BlockSizeMB int
	Store       StoreKind
	DBPath      string
	Demo        bool
	DemoRate    float64
	ShowVersion bool

	IsPipedStdin bool
}

// ParseServer reads daemon flags from args.
func ParseServer(args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if fi, err := os.Stdin.Stat(); err == nil {
		cfg.IsPipedStdin = (fi.Mode() & os.ModeCharDevice) == 0
	}

	fs := flag.NewFlagSet("proxylogd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usage(fs, serverUsage)

	fs.StringVar(&cfg.Listen, "listen", getenvDefault("PROXYLOG_LISTEN", "127.0.0.1:8428"), "listen address")
	fs.StringVar(&cfg.FilePath, "file", "", "proxy NDJSON log to serve (plain or gzip)")
	fs.BoolVar(&cfg.UseStdin, "stdin", false, "read the log from stdin (default: auto if piped)")
	fs.BoolVar(&cfg.Follow, "follow", false, "follow -file (tail -f)")
	fs.BoolVar(&cfg.FromStart, "from-start", true, "with -follow, load the existing file first")
	fs.IntVar(&cfg.BlockSizeMB, "block-size-mb", 0, "without -follow, read only the last N MB of -file (0=all)")
	store := getenvDefault("PROXYLOG_STORE", string(StoreMemory))
	fs.StringVar(&store, "store", store, "record store: memory|sqlite")
	fs.StringVar(&cfg.DBPath, "db", getenvDefault("PROXYLOG_DB", "proxylog.db"), "sqlite database path")
	fs.BoolVar(&cfg.Demo, "demo", false, "generate synthetic traffic")
	fs.Float64Var(&cfg.DemoRate, "demo-rate", 2, "demo exchanges per second")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Store = StoreKind(store)
	if cfg.Store != StoreMemory && cfg.Store != StoreSQLite {
		return nil, fmt.Errorf("unknown store %q", store)
	}
	if cfg.Follow && cfg.FilePath == "" {
		return nil, errors.New("--follow requires --file")
	}
	if cfg.FilePath != "" && cfg.UseStdin {
		return nil, errors.New("--file and --stdin are exclusive")
	}
	if !cfg.UseStdin && cfg.FilePath == "" && cfg.IsPipedStdin && !cfg.Demo {
		cfg.UseStdin = true
	}
	if cfg.FilePath == "" && !cfg.UseStdin {
		cfg.Demo = true
	}
	if cfg.DemoRate <= 0 {
		return nil, errors.New("--demo-rate must be positive")
	}
	return cfg, nil
}

// DemoInterval is the delay between demo exchanges.
func (c *ServerConfig) DemoInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.DemoRate)
}

func (c *ServerConfig) String() string {
	return fmt.Sprintf("listen=%s file=%s stdin=%v follow=%v store=%s demo=%v", c.Listen, c.FilePath, c.UseStdin, c.Follow, c.Store, c.Demo)
}

func usage(fs *flag.FlagSet, head string) func() {
	return func() {
		w := fs.Output()
		io.WriteString(w, head)
		fs.PrintDefaults()
	}
}

func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvDefaultInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvDefaultDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := time.ParseDuration(v); err == nil {
			return n
		}
	}
	return d
}
