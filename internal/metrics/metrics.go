// Package metrics registers the prometheus collectors for the batch and
// request paths. Dedup failure isolation is reported through counters here
// rather than aborting passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DedupEventsCompared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "dedup",
		Name:      "pairs_compared_total",
		Help:      "Candidate pairs given a full similarity comparison.",
	})

	DedupPairsQuickRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "dedup",
		Name:      "pairs_quick_rejected_total",
		Help:      "Candidate pairs skipped by the quick-reject pre-filter.",
	})

	DedupEventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "dedup",
		Name:      "events_skipped_total",
		Help:      "Events excluded from a dedup pass, by missing field.",
	}, []string{"reason"})

	DedupMatchesFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "dedup",
		Name:      "matches_total",
		Help:      "Duplicate matches emitted above the confidence threshold.",
	})

	MergesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "merge",
		Name:      "applied_total",
		Help:      "Duplicate pairs merged into a canonical event.",
	})

	MergesSkippedStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "merge",
		Name:      "skipped_stale_total",
		Help:      "Matches skipped because one side was already absorbed.",
	})

	RankingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whatson",
		Subsystem: "ranking",
		Name:      "request_duration_seconds",
		Help:      "Wall time of ranking computations, by surface.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"surface"})

	IngestPayloadsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "ingest",
		Name:      "payloads_rejected_total",
		Help:      "Scraped payloads rejected at the validation boundary.",
	})

	IngestEventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whatson",
		Subsystem: "ingest",
		Name:      "events_created_total",
		Help:      "New canonical events created from scraped payloads.",
	})
)
