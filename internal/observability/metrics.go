package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the review screening engine.
// Metrics are organized by subsystem: reviews, searches, screening, backend
// requests, journal, and events. All collectors are registered via promauto
// with the default Prometheus registry.
//
// Record methods are safe to call on a nil *Metrics, so components can run
// without metrics in tests and tools.
type Metrics struct {
	// ReviewsCreated counts reviews created through the engine.
	ReviewsCreated prometheus.Counter

	// ReviewsSelected counts committed review selections.
	ReviewsSelected prometheus.Counter

	// ReviewsDeleted counts reviews removed through the engine.
	ReviewsDeleted prometheus.Counter

	// SearchesTotal counts searches, labeled by result ("success", "failure").
	SearchesTotal *prometheus.CounterVec

	// SearchDuration observes search round-trip duration in seconds.
	SearchDuration prometheus.Histogram

	// StudiesIngested counts studies added to a registry by searches.
	StudiesIngested prometheus.Counter

	// DuplicatesRemoved counts search results dropped because their id was already present.
	DuplicatesRemoved prometheus.Counter

	// DecisionsTotal counts committed screening decisions, labeled by status.
	DecisionsTotal *prometheus.CounterVec

	// PendingStudies is the size of the active review's pending queue.
	PendingStudies prometheus.Gauge

	// StaleResponsesDiscarded counts responses dropped by the epoch guard, labeled by operation.
	StaleResponsesDiscarded *prometheus.CounterVec

	// BackendRequestsTotal counts backend calls, labeled by operation and outcome.
	BackendRequestsTotal *prometheus.CounterVec

	// BackendRequestDuration observes backend call duration in seconds, labeled by operation.
	BackendRequestDuration *prometheus.HistogramVec

	// JournalWritesFailed counts decision records that could not be journaled.
	JournalWritesFailed prometheus.Counter

	// EventsPublished counts screening events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts screening events that failed to publish, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Reviews
		ReviewsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_created_total",
			Help:      "Total number of reviews created",
		}),
		ReviewsSelected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_selected_total",
			Help:      "Total number of committed review selections",
		}),
		ReviewsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_deleted_total",
			Help:      "Total number of reviews deleted",
		}),

		// Searches
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by result",
		}, []string{"result"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		StudiesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "studies_ingested_total",
			Help:      "Total number of studies added by searches",
		}),
		DuplicatesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Total number of duplicate search results removed",
		}),

		// Screening
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of screening decisions by status",
		}, []string{"status"}),
		PendingStudies: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_studies",
			Help:      "Number of studies waiting for a decision in the active review",
		}),
		StaleResponsesDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_discarded_total",
			Help:      "Total number of backend responses discarded because the active review changed",
		}, []string{"operation"}),

		// Backend
		BackendRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		BackendRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		// Journal and events
		JournalWritesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_failed_total",
			Help:      "Total number of decision records that failed to persist",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of screening events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of screening events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordReviewCreated records that a review was created.
func (m *Metrics) RecordReviewCreated() {
	if m == nil {
		return
	}
	m.ReviewsCreated.Inc()
}

// RecordReviewSelected records a committed selection.
func (m *Metrics) RecordReviewSelected() {
	if m == nil {
		return
	}
	m.ReviewsSelected.Inc()
}

// RecordReviewDeleted records that a review was deleted.
func (m *Metrics) RecordReviewDeleted() {
	if m == nil {
		return
	}
	m.ReviewsDeleted.Inc()
}

// RecordSearchCompleted records a successful search and its ingest counts.
func (m *Metrics) RecordSearchCompleted(added, duplicates int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues("success").Inc()
	m.SearchDuration.Observe(durationSeconds)
	m.StudiesIngested.Add(float64(added))
	m.DuplicatesRemoved.Add(float64(duplicates))
}

// RecordSearchFailed records that a search failed.
func (m *Metrics) RecordSearchFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues("failure").Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordDecision records a committed screening decision.
func (m *Metrics) RecordDecision(status string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(status).Inc()
}

// SetPending sets the pending queue size of the active review.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingStudies.Set(float64(n))
}

// RecordStaleResponse records a response discarded by the epoch guard.
func (m *Metrics) RecordStaleResponse(operation string) {
	if m == nil {
		return
	}
	m.StaleResponsesDiscarded.WithLabelValues(operation).Inc()
}

// RecordBackendRequest records a backend call with its outcome
// ("success", "backend_error", "network_error", "schema_error").
func (m *Metrics) RecordBackendRequest(operation, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.BackendRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordJournalFailure records a decision record that failed to persist.
func (m *Metrics) RecordJournalFailure() {
	if m == nil {
		return
	}
	m.JournalWritesFailed.Inc()
}

// RecordEventPublished records a published screening event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a screening event that failed to publish.
func (m *Metrics) RecordEventFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
