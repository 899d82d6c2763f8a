package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/stac-siphon/pkg/client"
	"github.com/Sternrassler/stac-siphon/pkg/dedupe"
	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/metrics"
	"github.com/Sternrassler/stac-siphon/pkg/replicate"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stderr))
}

// run executes one replication and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	cfg, err := loadConfig(args, getenv, stderr)
	if err != nil {
		return exitUsage
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: stderr,
	})

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Retry.MaxAttempts = cfg.Retries

	httpClient, err := client.New(clientCfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP client")
		return exitUsage
	}
	defer httpClient.Close()

	opts := replicate.Options{
		Source:           cfg.Src,
		SourceCollection: cfg.SourceCollection,
		Destination:      cfg.Dst,
		PageSize:         cfg.PageSize,
		Bulk:             cfg.Bulk,
		TolerateConflict: cfg.TolerateConflict,
		Replicator: replicate.ReplicatorConfig{
			Mode:                   cfg.Mode,
			MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		},
	}

	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Redis")
			return exitFailure
		}
		defer redisClient.Close()
		opts.Replicator.Seen = dedupe.NewStore(redisClient, cfg.DedupeTTL)
	}

	stats, runErr := replicate.Run(ctx, httpClient, opts)

	if cfg.Pushgateway != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := metrics.Push(pushCtx, cfg.Pushgateway, metrics.DefaultJob, nil, map[string]string{"destination": cfg.Dst})
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to push metrics")
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "stac-siphon: %v\n", runErr)
		return exitFailure
	}
	if stats.Failed > 0 {
		fmt.Fprintf(stderr, "stac-siphon: %d of %d item writes failed\n", stats.Failed, stats.Failed+stats.Written)
		return exitFailure
	}
	return exitOK
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis, skipping items already written")
	return redisClient, nil
}
