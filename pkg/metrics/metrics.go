// Package metrics documents the Prometheus metrics exported by stac-siphon
// and pushes them to a Pushgateway at the end of a run.
//
// All metrics are defined in their respective packages (client, pagination,
// replicate, dedupe) via promauto and land in the default registry.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry is the default Prometheus registry all siphon metrics register with.
var Registry = prometheus.DefaultRegisterer

// DefaultJob is the Pushgateway job name used by the CLI.
const DefaultJob = "stac_siphon"

// Push sends every metric in gatherer to the Pushgateway at url, replacing
// what was previously pushed for job. Grouping labels further partition the
// job, e.g. by destination collection.
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer, grouping map[string]string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = DefaultJob
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	pusher := push.New(url, job).Gatherer(gatherer)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - siphon_http_requests_total{method, status} (Counter): Requests by method and HTTP status
//   - siphon_http_request_duration_seconds{method} (Histogram): Request duration by method
//   - siphon_http_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - siphon_http_retries_total{error_class} (Counter): Retry attempts by error class
//   - siphon_http_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - siphon_http_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Source Metrics (pkg/pagination):
//   - siphon_pages_fetched_total (Counter): Non-empty source pages fetched
//   - siphon_items_received_total (Counter): Items received from source pages
//
// Replication Metrics (pkg/replicate):
//   - siphon_items_written_total (Counter): Items created at the destination
//   - siphon_items_failed_total (Counter): Failed item writes
//   - siphon_items_skipped_total{reason} (Counter): Items not written (already_written, malformed)
//   - siphon_collections_provisioned_total{result} (Counter): created, exists, failed
//   - siphon_run_duration_seconds (Gauge): Duration of the last run
//   - siphon_last_success_timestamp_seconds (Gauge): Unix time of the last clean run
//
// Dedupe Metrics (pkg/dedupe):
//   - siphon_dedupe_hits_total / siphon_dedupe_misses_total (Counter)
//   - siphon_dedupe_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//   # Write failure ratio
//   siphon_items_failed_total / (siphon_items_written_total + siphon_items_failed_total)
//
//   # Replication went stale
//   time() - siphon_last_success_timestamp_seconds > 86400
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(siphon_http_request_duration_seconds_bucket[5m]))
