package replicate

import (
	"context"
	"time"

	"github.com/Sternrassler/stac-siphon/pkg/logging"
	"github.com/Sternrassler/stac-siphon/pkg/pagination"
)

// Client is the transport a run needs: page reads and document writes.
type Client interface {
	Writer
	pagination.PageFetcher
}

// Options configures a replication run.
type Options struct {
	// Source is the root URL of the source STAC API
	Source string

	// SourceCollection is the collection read from the source; defaults to
	// the destination collection id
	SourceCollection string

	// Destination is <collections-base>/<collection-id>
	Destination string

	// PageSize requests this many items per source page; zero leaves it to
	// the server
	PageSize int

	// Bulk is reserved for a bulk write mode; items are always written one
	// at a time
	Bulk bool

	// TolerateConflict treats 409 on collection creation as success
	TolerateConflict bool

	Replicator ReplicatorConfig
}

// Run provisions the destination collection and copies every source item
// into it.
func Run(ctx context.Context, c Client, opts Options) (Stats, error) {
	start := time.Now()
	logger := logging.NewLogger("siphon")

	dest, err := ParseDestination(opts.Destination)
	if err != nil {
		return Stats{}, err
	}

	sourceCollection := opts.SourceCollection
	if sourceCollection == "" {
		sourceCollection = dest.CollectionID
	}

	startURL, err := pagination.ItemsURL(opts.Source, sourceCollection, opts.PageSize)
	if err != nil {
		return Stats{}, &ConfigError{Input: opts.Source, Reason: err.Error()}
	}

	if opts.Bulk {
		logger.Debug().Msg("Bulk mode requested, items are written one at a time")
	}

	logger.Info().
		Str("source", startURL).
		Str("destination", dest.URL()).
		Str("mode", string(opts.Replicator.Mode)).
		Msg("Starting replication")

	if err := NewProvisioner(c, opts.TolerateConflict).Provision(ctx, dest); err != nil {
		return Stats{}, err
	}

	cursor := pagination.NewCursor(c, startURL)
	stats, err := NewReplicator(c, dest, opts.Replicator).Run(ctx, cursor)
	stats.Pages = cursor.Pages()

	elapsed := time.Since(start)
	runDurationSeconds.Set(elapsed.Seconds())

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("pages", stats.Pages).
		Int("written", stats.Written).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("malformed", stats.Malformed).
		Dur("duration", elapsed).
		Msg("Replication finished")

	if err != nil {
		return stats, err
	}

	if stats.Failed == 0 {
		lastSuccessTimestamp.SetToCurrentTime()
	}
	return stats, nil
}
