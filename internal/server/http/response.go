package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/screening"
)

// Response types for JSON serialization.

type healthResponse struct {
	Status         string `json:"status"`
	Journal        string `json:"journal,omitempty"`
	Error          string `json:"error,omitempty"`
	ActiveReviewID string `json:"active_review_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

type listReviewsResponse struct {
	Reviews        []domain.Review `json:"reviews"`
	ActiveReviewID string          `json:"active_review_id,omitempty"`
	TotalCount     int             `json:"total_count"`
}

type selectReviewResponse struct {
	Review *domain.Review       `json:"review"`
	Cursor screening.CursorView `json:"cursor"`
	Stats  domain.Statistics    `json:"statistics"`
}

type searchResponse struct {
	screening.MergeResult
	Cursor screening.CursorView `json:"cursor"`
}

type listStudiesResponse struct {
	Studies    []domain.Study `json:"studies"`
	TotalCount int            `json:"total_count"`
}

type studyResponse struct {
	Study  domain.Study         `json:"study"`
	Cursor screening.CursorView `json:"cursor"`
}

type bulkDecisionResponse struct {
	screening.BulkResult
	Cursor screening.CursorView `json:"cursor"`
}

type decisionsResponse struct {
	StudyID   string                  `json:"study_id"`
	Decisions []domain.DecisionRecord `json:"decisions"`
}

func newListReviewsResponse(reviews []domain.Review, active *domain.Review) listReviewsResponse {
	if reviews == nil {
		reviews = []domain.Review{}
	}
	resp := listReviewsResponse{Reviews: reviews, TotalCount: len(reviews)}
	if active != nil {
		resp.ActiveReviewID = active.ID
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}
