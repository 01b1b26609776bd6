package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_screening_new")

	assert.NotNil(t, m.ReviewsCreated)
	assert.NotNil(t, m.ReviewsSelected)
	assert.NotNil(t, m.ReviewsDeleted)
	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.StudiesIngested)
	assert.NotNil(t, m.DuplicatesRemoved)
	assert.NotNil(t, m.DecisionsTotal)
	assert.NotNil(t, m.PendingStudies)
	assert.NotNil(t, m.StaleResponsesDiscarded)
	assert.NotNil(t, m.BackendRequestsTotal)
	assert.NotNil(t, m.BackendRequestDuration)
	assert.NotNil(t, m.JournalWritesFailed)
	assert.NotNil(t, m.EventsPublished)
	assert.NotNil(t, m.EventsFailed)
}

func TestRecordReviewLifecycle(t *testing.T) {
	m := NewMetrics("test_review_lifecycle")

	m.RecordReviewCreated()
	m.RecordReviewSelected()
	m.RecordReviewSelected()
	m.RecordReviewDeleted()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReviewsCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReviewsSelected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReviewsDeleted))
}

func TestRecordSearchCompleted(t *testing.T) {
	m := NewMetrics("test_search_completed")

	m.RecordSearchCompleted(3, 1, 2.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.StudiesIngested))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DuplicatesRemoved))

	histCount, err := getHistogramSampleCount(m.SearchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordSearchFailed(t *testing.T) {
	m := NewMetrics("test_search_failed")

	m.RecordSearchFailed(1.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StudiesIngested))
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics("test_decisions")

	m.RecordDecision("included")
	m.RecordDecision("excluded")
	m.RecordDecision("excluded")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("included")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("excluded")))
}

func TestSetPending(t *testing.T) {
	m := NewMetrics("test_pending")

	m.SetPending(5)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.PendingStudies))
	m.SetPending(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingStudies))
}

func TestRecordStaleResponse(t *testing.T) {
	m := NewMetrics("test_stale")

	m.RecordStaleResponse("select")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StaleResponsesDiscarded.WithLabelValues("select")))
}

func TestRecordBackendRequest(t *testing.T) {
	m := NewMetrics("test_backend_request")

	m.RecordBackendRequest("list_reviews", "success", 0.2)
	m.RecordBackendRequest("list_reviews", "network_error", 5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("list_reviews", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("list_reviews", "network_error")))
}

func TestRecordJournalAndEvents(t *testing.T) {
	m := NewMetrics("test_journal_events")

	m.RecordJournalFailure()
	m.RecordEventPublished("review.created")
	m.RecordEventFailed("review.deleted")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.JournalWritesFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues("review.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsFailed.WithLabelValues("review.deleted")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordReviewCreated()
		m.RecordReviewSelected()
		m.RecordReviewDeleted()
		m.RecordSearchCompleted(1, 1, 1)
		m.RecordSearchFailed(1)
		m.RecordDecision("included")
		m.SetPending(3)
		m.RecordStaleResponse("select")
		m.RecordBackendRequest("search", "success", 1)
		m.RecordJournalFailure()
		m.RecordEventPublished("review.created")
		m.RecordEventFailed("review.created")
	})
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
