package dedupe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to every Redis key written by Store.
const KeyPrefix = "siphon:seen"

var (
	// SeenHits counts lookups that found an already written item
	SeenHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_dedupe_hits_total",
		Help: "Total number of items found already written",
	})

	// SeenMisses counts lookups for items not yet written
	SeenMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_dedupe_misses_total",
		Help: "Total number of items not yet written",
	})

	// StoreErrors tracks Redis operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siphon_dedupe_errors_total",
			Help: "Total number of dedupe store operation errors",
		},
		[]string{"operation"}, // "seen", "mark", "reset"
	)
)

// Store is a Redis-backed record of written item identifiers.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a store. A positive ttl expires a collection's record that
// long after its last write; zero keeps it forever.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Key returns the Redis key holding the record for a destination collection.
func Key(collection string) string {
	return KeyPrefix + ":" + strings.TrimRight(collection, "/")
}

// Seen reports whether id was already written to collection.
func (s *Store) Seen(ctx context.Context, collection, id string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, Key(collection), id).Result()
	if err != nil {
		StoreErrors.WithLabelValues("seen").Inc()
		return false, fmt.Errorf("redis sismember: %w", err)
	}

	if ok {
		SeenHits.Inc()
	} else {
		SeenMisses.Inc()
	}
	return ok, nil
}

// Mark records id as written to collection.
func (s *Store) Mark(ctx context.Context, collection, id string) error {
	key := Key(collection)

	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, id)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		StoreErrors.WithLabelValues("mark").Inc()
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Count returns how many items are recorded for collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.redis.SCard(ctx, Key(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scard: %w", err)
	}
	return n, nil
}

// Reset forgets every recorded item for collection.
func (s *Store) Reset(ctx context.Context, collection string) error {
	if err := s.redis.Del(ctx, Key(collection)).Err(); err != nil {
		StoreErrors.WithLabelValues("reset").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
