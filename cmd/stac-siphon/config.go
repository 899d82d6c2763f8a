package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/replicate"
)

const defaultUserAgent = "stac-siphon/0.1.0"

// config is the fully resolved command line. Every flag defaults to a
// SIPHON_* environment variable.
type config struct {
	Src              string
	Dst              string
	SourceCollection string
	Bulk             bool

	Mode                   replicate.Mode
	TolerateConflict       bool
	PageSize               int
	MaxConsecutiveFailures int

	RedisURL  string
	DedupeTTL time.Duration

	Pushgateway string

	LogLevel  logging.LogLevel
	LogPretty bool

	UserAgent string
	Timeout   time.Duration
	Retries   int
}

// errUsage marks command line errors; the flag set has already printed why.
var errUsage = errors.New("usage error")

// loadConfig parses args on top of defaults taken from getenv.
func loadConfig(args []string, getenv func(string) string, output io.Writer) (config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	var cfg config
	var mode, level string

	fs := flag.NewFlagSet("stac-siphon", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: stac-siphon -src <api root> -dst <collections url>/<collection id> [flags]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.Src, "src", env("SIPHON_SRC", ""), "source STAC API root URL")
	fs.StringVar(&cfg.Src, "s", env("SIPHON_SRC", ""), "shorthand for -src")
	fs.StringVar(&cfg.Dst, "dst", env("SIPHON_DST", ""), "destination collection URL")
	fs.StringVar(&cfg.Dst, "d", env("SIPHON_DST", ""), "shorthand for -dst")
	fs.StringVar(&cfg.SourceCollection, "src-collection", env("SIPHON_SRC_COLLECTION", ""), "source collection id (default: destination collection id)")
	fs.BoolVar(&cfg.Bulk, "bulk", envBool(env("SIPHON_BULK", ""), true), "reserved for bulk writes; currently no effect")
	fs.BoolVar(&cfg.Bulk, "b", envBool(env("SIPHON_BULK", ""), true), "shorthand for -bulk")

	fs.StringVar(&mode, "mode", env("SIPHON_MODE", string(replicate.ModeAbort)), "on item write failure: abort or continue")
	fs.BoolVar(&cfg.TolerateConflict, "tolerate-conflict", envBool(env("SIPHON_TOLERATE_CONFLICT", ""), false), "treat 409 on collection creation as success")
	fs.IntVar(&cfg.PageSize, "page-size", envInt(env("SIPHON_PAGE_SIZE", ""), 0), "items per source page (0: server default)")
	fs.IntVar(&cfg.MaxConsecutiveFailures, "max-consecutive-failures", envInt(env("SIPHON_MAX_CONSECUTIVE_FAILURES", ""), 10), "abort a continue-mode run after this many failed writes in a row (0: never)")

	fs.StringVar(&cfg.RedisURL, "redis-url", env("SIPHON_REDIS_URL", ""), "redis URL recording written items to skip on rerun (optional)")
	fs.DurationVar(&cfg.DedupeTTL, "dedupe-ttl", envDuration(env("SIPHON_DEDUPE_TTL", ""), 0), "expire the written-item record after this long (0: never)")

	fs.StringVar(&cfg.Pushgateway, "pushgateway", env("SIPHON_PUSHGATEWAY", ""), "Prometheus Pushgateway URL (optional)")

	fs.StringVar(&level, "log-level", env("SIPHON_LOG_LEVEL", string(logging.LevelInfo)), "debug, info, warn or error")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", envBool(env("SIPHON_LOG_PRETTY", ""), false), "human-readable log output")

	fs.StringVar(&cfg.UserAgent, "user-agent", env("SIPHON_USER_AGENT", defaultUserAgent), "User-Agent header")
	fs.DurationVar(&cfg.Timeout, "timeout", envDuration(env("SIPHON_TIMEOUT", ""), 30*time.Second), "per-request timeout")
	fs.IntVar(&cfg.Retries, "retries", envInt(env("SIPHON_RETRIES", ""), 3), "attempts per source page")

	if err := fs.Parse(args); err != nil {
		return config{}, errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(output, "unexpected arguments: %v\n", fs.Args())
		return config{}, errUsage
	}

	if cfg.Src == "" || cfg.Dst == "" {
		fmt.Fprintln(output, "both -src and -dst are required")
		fs.Usage()
		return config{}, errUsage
	}

	var err error
	if cfg.Mode, err = replicate.ParseMode(mode); err != nil {
		fmt.Fprintln(output, err)
		return config{}, errUsage
	}
	if cfg.LogLevel, err = logging.ParseLevel(level); err != nil {
		fmt.Fprintln(output, err)
		return config{}, errUsage
	}
	if cfg.Retries < 1 {
		fmt.Fprintf(output, "retries must be >= 1 (got %d)\n", cfg.Retries)
		return config{}, errUsage
	}

	return cfg, nil
}

func envBool(v string, def bool) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

func envInt(v string, def int) int {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func envDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
