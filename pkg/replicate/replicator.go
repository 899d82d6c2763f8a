package replicate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/pagination"
	"github.com/Sternrassler/stac-siphon/pkg/stac"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Mode selects what a failed item write does to the run.
type Mode string

const (
	// ModeAbort ends the run at the first failed write.
	ModeAbort Mode = "abort"

	// ModeContinue logs a failed write and moves on to the next item.
	ModeContinue Mode = "continue"
)

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAbort:
		return ModeAbort, nil
	case ModeContinue:
		return ModeContinue, nil
	default:
		return "", &ConfigError{Input: s, Reason: "mode must be abort or continue"}
	}
}

// ItemSource yields items until it returns pagination.Done.
type ItemSource interface {
	Next(ctx context.Context) (stac.Item, error)
}

// SeenStore remembers items already written to a destination collection.
type SeenStore interface {
	Seen(ctx context.Context, collection, id string) (bool, error)
	Mark(ctx context.Context, collection, id string) error
}

// Status is the result of handling one item.
type Status string

const (
	StatusWritten   Status = "written"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusMalformed Status = "malformed"
)

// Outcome reports what happened to one item.
type Outcome struct {
	ItemID string
	Status Status
	Err    error
}

// Stats summarizes a run.
type Stats struct {
	Pages     int
	Written   int
	Failed    int
	Skipped   int
	Malformed int
}

// ReplicatorConfig holds the replicator configuration.
type ReplicatorConfig struct {
	Mode Mode

	// MaxConsecutiveFailures trips the write circuit breaker in ModeContinue;
	// zero or less never trips it
	MaxConsecutiveFailures int

	// Seen enables skipping items recorded as already written (optional)
	Seen SeenStore

	// OnOutcome is called once per item, in order (optional)
	OnOutcome func(Outcome)
}

// DefaultReplicatorConfig returns the baseline configuration: abort on the
// first failed write, no dedupe.
func DefaultReplicatorConfig() ReplicatorConfig {
	return ReplicatorConfig{
		Mode:                   ModeAbort,
		MaxConsecutiveFailures: 10,
	}
}

// Replicator writes items from an ItemSource to a destination collection.
type Replicator struct {
	writer  Writer
	dest    Destination
	config  ReplicatorConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewReplicator creates a replicator writing to dest.
func NewReplicator(writer Writer, dest Destination, cfg ReplicatorConfig) *Replicator {
	if cfg.Mode == "" {
		cfg.Mode = ModeAbort
	}

	logger := logging.NewLogger("replicator").With().Str("collection_id", dest.CollectionID).Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "destination-writes",
		MaxRequests: 1,
		Timeout:     time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.MaxConsecutiveFailures > 0 &&
				counts.ConsecutiveFailures >= uint32(cfg.MaxConsecutiveFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Replicator{
		writer:  writer,
		dest:    dest,
		config:  cfg,
		breaker: breaker,
		logger:  logger,
	}
}

// Run drains src, writing one item at a time. It returns nil once src is
// exhausted. A source failure ends the run with a *ReadError; a write failure
// ends it with a *WriteError in ModeAbort, or once the breaker opens in
// ModeContinue. Cancellation is checked before every read and every write.
func (r *Replicator) Run(ctx context.Context, src ItemSource) (Stats, error) {
	var stats Stats
	itemsURL := r.dest.ItemsURL()

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("replication cancelled: %w", err)
		}

		item, err := src.Next(ctx)
		if err != nil {
			var decodeErr *stac.ItemDecodeError
			switch {
			case errors.Is(err, pagination.Done):
				return stats, nil
			case errors.As(err, &decodeErr):
				stats.Malformed++
				itemsSkippedTotal.WithLabelValues("malformed").Inc()
				r.logger.Warn().Err(err).Msg("Skipping malformed item")
				r.emit(Outcome{Status: StatusMalformed, Err: err})
				continue
			case ctx.Err() != nil:
				return stats, fmt.Errorf("replication cancelled: %w", ctx.Err())
			default:
				return stats, &ReadError{Err: err}
			}
		}

		if r.config.Seen != nil {
			seen, err := r.config.Seen.Seen(ctx, r.dest.URL(), item.ID)
			if err != nil {
				return stats, fmt.Errorf("dedupe lookup for item %q: %w", item.ID, err)
			}
			if seen {
				stats.Skipped++
				itemsSkippedTotal.WithLabelValues("already_written").Inc()
				r.logger.Debug().Str("item_id", item.ID).Msg("Item already written, skipping")
				r.emit(Outcome{ItemID: item.ID, Status: StatusSkipped})
				continue
			}
		}

		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("replication cancelled: %w", err)
		}

		if err := r.write(ctx, itemsURL, item); err != nil {
			stats.Failed++
			itemsFailedTotal.Inc()
			r.emit(Outcome{ItemID: item.ID, Status: StatusFailed, Err: err})

			if r.config.Mode == ModeAbort {
				return stats, err
			}
			if r.breaker.State() == gobreaker.StateOpen {
				err.Err = fmt.Errorf("%w: %w", ErrTooManyFailures, err.Err)
				return stats, err
			}

			r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Failed to create item, continuing")
			continue
		}

		stats.Written++
		itemsWrittenTotal.Inc()
		r.logger.Info().Str("item_id", item.ID).Msg("Item created")

		if r.config.Seen != nil {
			if err := r.config.Seen.Mark(ctx, r.dest.URL(), item.ID); err != nil {
				r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Failed to record written item")
			}
		}
		r.emit(Outcome{ItemID: item.ID, Status: StatusWritten})
	}
}

// write posts one item through the circuit breaker.
func (r *Replicator) write(ctx context.Context, itemsURL string, item stac.Item) *WriteError {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.writer.PostJSON(ctx, itemsURL, item)
	})
	if err != nil {
		return &WriteError{ItemID: item.ID, URL: itemsURL, Err: err}
	}
	return nil
}

func (r *Replicator) emit(o Outcome) {
	if r.config.OnOutcome != nil {
		r.config.OnOutcome(o)
	}
}
