// Package journal keeps an append-only history of screening decisions.
//
// The screening store appends a record after every committed decision. A
// journal failure never rolls back the decision itself.
package journal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/helixir/review-screening/internal/domain"
)

// Journal stores screening decisions.
type Journal interface {
	// Append records one decision.
	Append(ctx context.Context, rec domain.DecisionRecord) error
	// History returns the decisions for a study, newest first.
	History(ctx context.Context, reviewID, studyID string) ([]domain.DecisionRecord, error)
	// ReviewHistory returns every decision recorded for a review, newest first.
	ReviewHistory(ctx context.Context, reviewID string) ([]domain.DecisionRecord, error)
	// DeleteReview drops every decision recorded for a review.
	DeleteReview(ctx context.Context, reviewID string) error
}

// Compile-time interface verification.
var _ Journal = (*Memory)(nil)

// Memory is an in-process Journal. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]domain.DecisionRecord
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]domain.DecisionRecord)}
}

func studyKey(reviewID, studyID string) string {
	return reviewID + "\x00" + studyID
}

// Append implements Journal.
func (m *Memory) Append(_ context.Context, rec domain.DecisionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := studyKey(rec.ReviewID, rec.StudyID)
	m.records[key] = append(m.records[key], rec)
	return nil
}

// History implements Journal.
func (m *Memory) History(_ context.Context, reviewID, studyID string) ([]domain.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return newestFirst(m.records[studyKey(reviewID, studyID)]), nil
}

// ReviewHistory implements Journal. Records of different studies with the
// same DecidedAt are ordered by study id.
func (m *Memory) ReviewHistory(_ context.Context, reviewID string) ([]domain.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []domain.DecisionRecord
	for _, key := range m.reviewKeysLocked(reviewID) {
		recs = append(recs, newestFirst(m.records[key])...)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].DecidedAt.Equal(recs[j].DecidedAt) {
			return recs[i].DecidedAt.After(recs[j].DecidedAt)
		}
		return recs[i].StudyID < recs[j].StudyID
	})
	return recs, nil
}

// DeleteReview implements Journal.
func (m *Memory) DeleteReview(_ context.Context, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.reviewKeysLocked(reviewID) {
		delete(m.records, key)
	}
	return nil
}

func (m *Memory) reviewKeysLocked(reviewID string) []string {
	prefix := reviewID + "\x00"
	var keys []string
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// newestFirst copies records stored oldest first into newest-first order.
// Ties in DecidedAt keep the later insertion first.
func newestFirst(recs []domain.DecisionRecord) []domain.DecisionRecord {
	out := make([]domain.DecisionRecord, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DecidedAt.After(out[j].DecidedAt) })
	return out
}

func validateRecord(rec domain.DecisionRecord) error {
	if rec.ReviewID == "" {
		return domain.NewValidationError("review_id", "review id is required")
	}
	if rec.StudyID == "" {
		return domain.NewValidationError("study_id", "study id is required")
	}
	if !rec.Status.IsValid() {
		return domain.NewValidationError("status", "unknown screening status: "+string(rec.Status))
	}
	return nil
}
