package replicate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_items_written_total",
		Help: "Total number of items created at the destination",
	})

	itemsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siphon_items_failed_total",
		Help: "Total number of item writes that failed",
	})

	itemsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_items_skipped_total",
		Help: "Total number of items not written by reason",
	}, []string{"reason"}) // "already_written", "malformed"

	collectionsProvisionedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_collections_provisioned_total",
		Help: "Collection provisioning attempts by result",
	}, []string{"result"}) // "created", "exists", "failed"

	runDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "siphon_run_duration_seconds",
		Help: "Duration of the last replication run",
	})

	lastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "siphon_last_success_timestamp_seconds",
		Help: "Unix time of the last fully successful replication run",
	})
)
