package screening

import (
	"context"
	"strings"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/observability"
)

// Outcomes of one study in a bulk decision.
const (
	BulkSuccess = "success"
	BulkError   = "error"
)

// BulkItem is the outcome of a bulk decision for one study.
type BulkItem struct {
	StudyID string `json:"study_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BulkResult reports a bulk decision study by study, in request order.
type BulkResult struct {
	Results   []BulkItem `json:"results"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

func (r *BulkResult) add(studyID string, err error) {
	r.Total++
	if err != nil {
		r.Failed++
		r.Results = append(r.Results, BulkItem{StudyID: studyID, Status: BulkError, Error: err.Error()})
		return
	}
	r.Succeeded++
	r.Results = append(r.Results, BulkItem{StudyID: studyID, Status: BulkSuccess})
}

// BulkDecide applies one decision to several studies of the active review.
// Each study is patched on its own and a failure does not stop the others.
// Only accepted decisions are journaled and committed. Repeated ids are
// decided once.
//
// If the active review changes before the commit, the accepted decisions stay
// journaled, local state is left alone and the per-study result is returned
// with ErrStaleResponse.
func (s *Store) BulkDecide(ctx context.Context, studyIDs []string, d domain.Decision) (BulkResult, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return BulkResult{}, err
	}
	ids := uniqueIDs(studyIDs)
	if len(ids) == 0 {
		return BulkResult{}, domain.NewValidationError("study_ids", "at least one study id is required")
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return BulkResult{}, domain.ErrNoActiveReview
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, known[id] = s.registry.Get(id)
	}
	scope := s.scopeLocked()
	s.mu.Unlock()

	logger := observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch)
	result := BulkResult{Results: make([]BulkItem, 0, len(ids))}
	var accepted []string
	fresh := make(map[string]*domain.Study)

	for _, id := range ids {
		if !known[id] {
			result.add(id, domain.NewNotFoundError("study", id))
			continue
		}
		studyLogger := observability.WithStudyContext(logger, id)
		backendCopy, err := s.patch(ctx, scope, id, d)
		if err != nil {
			studyLogger.Warn().Err(err).Msg("screening decision rejected")
			result.add(id, err)
			continue
		}
		s.journalDecision(ctx, studyLogger, scope.ReviewID, id, d)
		accepted = append(accepted, id)
		fresh[id] = backendCopy
		result.add(id, nil)
	}

	s.mu.Lock()
	if !s.currentLocked(scope) {
		s.mu.Unlock()
		s.discard(opBulkDecide, scope)
		return result, domain.ErrStaleResponse
	}
	completed := false
	if len(accepted) > 0 {
		for _, id := range accepted {
			// Ids known at dispatch stay in the registry for the whole epoch.
			_ = s.applyLocked(id, d, fresh[id])
		}
		completed = s.settleLocked()
	}
	stats := s.stats
	s.mu.Unlock()

	for _, id := range accepted {
		s.announceDecision(ctx, observability.WithStudyContext(logger, id), scope.ReviewID, id, d)
	}
	logger.Info().
		Str("status", string(d.Status)).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("bulk screening decision applied")
	if completed {
		s.publishCompleted(ctx, scope.ReviewID, stats)
	}
	return result, nil
}

// uniqueIDs trims ids and drops blanks and repeats, keeping first occurrence.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
