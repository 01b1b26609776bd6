package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/prisma"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// Error codes returned in the "code" field of error responses.
const (
	codeInvalidInput   = "invalid_input"
	codeNotFound       = "not_found"
	codeStale          = "stale_response"
	codeQueueEmpty     = "queue_empty"
	codeNoActiveReview = "no_active_review"
	codeBackend        = "backend_error"
	codeNetwork        = "network_error"
	codeSchema         = "schema_error"
	codeInternal       = "internal_error"
)

// createReviewRequest is the JSON request body for creating a review.
type createReviewRequest struct {
	Name              string   `json:"name" validate:"max=500"`
	ResearchQuestion  string   `json:"research_question" validate:"max=10000"`
	Databases         []string `json:"databases" validate:"max=16"`
	InclusionCriteria []string `json:"inclusion_criteria,omitempty" validate:"max=100,dive,max=2000"`
	ExclusionCriteria []string `json:"exclusion_criteria,omitempty" validate:"max=100,dive,max=2000"`
}

// searchRequest is the JSON request body for a literature search.
type searchRequest struct {
	Query     string   `json:"query" validate:"max=10000"`
	Databases []string `json:"databases,omitempty" validate:"max=16"`
}

// decisionRequest is the JSON request body for a screening decision.
type decisionRequest struct {
	Status          string `json:"status" validate:"required"`
	ExclusionReason string `json:"exclusion_reason,omitempty" validate:"max=2000"`
	ExclusionStage  string `json:"exclusion_stage,omitempty"`
}

// bulkDecisionRequest applies one decision to several studies.
type bulkDecisionRequest struct {
	StudyIDs []string `json:"study_ids" validate:"required,min=1,max=500"`
	decisionRequest
}

func (r decisionRequest) toDecision() domain.Decision {
	return domain.Decision{
		Status: domain.ScreeningStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		Reason: r.ExclusionReason,
		Stage:  domain.ExclusionStage(strings.ToLower(strings.TrimSpace(r.ExclusionStage))),
	}
}

// listReviews handles GET /reviews.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newListReviewsResponse(s.engine.Reviews(), s.engine.Active()))
}

// refreshReviews handles POST /reviews/refresh.
func (s *Server) refreshReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListReviewsResponse(reviews, s.engine.Active()))
}

// createReview handles POST /reviews. The new review becomes active.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	review, err := s.engine.Create(r.Context(), domain.CreateReviewInput{
		Name:              req.Name,
		ResearchQuestion:  req.ResearchQuestion,
		Databases:         toDatabaseIDs(req.Databases),
		InclusionCriteria: req.InclusionCriteria,
		ExclusionCriteria: req.ExclusionCriteria,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// selectReview handles POST /reviews/{reviewID}/select.
func (s *Server) selectReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.engine.Select(r.Context(), chi.URLParam(r, "reviewID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectReviewResponse{
		Review: review,
		Cursor: s.engine.Cursor(),
		Stats:  s.engine.Statistics(),
	})
}

// deleteReview handles DELETE /reviews/{reviewID}.
func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Remove(r.Context(), chi.URLParam(r, "reviewID")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getSession handles GET /session.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// search handles POST /session/search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.Search(r.Context(), toDatabaseIDs(req.Databases), req.Query)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{MergeResult: result, Cursor: s.engine.Cursor()})
}

// listStudies handles GET /session/studies, optionally filtered by ?status=.
func (s *Server) listStudies(w http.ResponseWriter, r *http.Request) {
	if s.engine.Active() == nil {
		s.writeDomainError(w, r, domain.ErrNoActiveReview)
		return
	}

	studies := s.engine.Studies()
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ScreeningStatus(strings.ToLower(raw))
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, codeInvalidInput, fmt.Sprintf("unknown status filter: %s", raw))
			return
		}
		filtered := studies[:0]
		for _, st := range studies {
			if st.Status == status {
				filtered = append(filtered, st)
			}
		}
		studies = filtered
	}
	if studies == nil {
		studies = []domain.Study{}
	}
	writeJSON(w, http.StatusOK, listStudiesResponse{Studies: studies, TotalCount: len(studies)})
}

// updateStudy handles PATCH /session/studies/{studyID}.
func (s *Server) updateStudy(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	study, err := s.engine.SetStatus(r.Context(), chi.URLParam(r, "studyID"), req.toDecision())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studyResponse{Study: study, Cursor: s.engine.Cursor()})
}

// bulkDecide handles POST /session/studies/bulk. Per-study failures are
// reported in the body; only request-level errors change the status code.
func (s *Server) bulkDecide(w http.ResponseWriter, r *http.Request) {
	var req bulkDecisionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.BulkDecide(r.Context(), req.StudyIDs, req.toDecision())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDecisionResponse{BulkResult: result, Cursor: s.engine.Cursor()})
}

// studyDecisions handles GET /session/studies/{studyID}/decisions.
func (s *Server) studyDecisions(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")
	records, err := s.engine.History(r.Context(), studyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, decisionsResponse{StudyID: studyID, Decisions: records})
}

// getCursor handles GET /session/cursor.
func (s *Server) getCursor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Cursor())
}

// nextStudy handles POST /session/cursor/next.
func (s *Server) nextStudy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Next())
}

// previousStudy handles POST /session/cursor/previous.
func (s *Server) previousStudy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Previous())
}

// decide handles POST /session/cursor/decide.
func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	study, err := s.engine.Decide(r.Context(), req.toDecision())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studyResponse{Study: study, Cursor: s.engine.Cursor()})
}

// getPrismaFlow handles GET /session/prisma.
func (s *Server) getPrismaFlow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Flow())
}

// getRemotePrismaFlow handles GET /session/prisma/remote.
func (s *Server) getRemotePrismaFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.engine.RemoteFlow(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

// getPrismaSVG handles GET /session/prisma.svg.
func (s *Server) getPrismaSVG(w http.ResponseWriter, r *http.Request) {
	svg, err := prisma.RenderSVG(s.engine.Flow())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", prisma.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// getStatistics handles GET /session/statistics.
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statistics())
}

// exportReview handles GET /session/export?format=json|csv.
func (s *Server) exportReview(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("unsupported export format %q", format),
			Code:  codeInvalidInput,
			Field: "format",
		})
		return
	}

	export, err := s.engine.Export(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if format == "json" {
		writeJSON(w, http.StatusOK, export)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "review-"+export.Review.ID+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w); err != nil {
		s.logger.Warn().Err(err).Str("review_id", export.Review.ID).Msg("csv export interrupted")
	}
}

// decodeJSON reads and validates a request body, writing a 400 response on
// failure. It reports whether the handler should continue.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()),
				Code:  codeInvalidInput,
				Field: fe.Field(),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid request")
		return false
	}
	return true
}

// writeDomainError maps engine errors to HTTP status codes and writes a JSON
// error response. Backend details are passed through since they are already
// user-facing.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var (
		ve *domain.ValidationError
		be *domain.BackendError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Code: codeInvalidInput, Field: ve.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid input")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrStaleResponse):
		writeError(w, http.StatusConflict, codeStale, "the active review changed while the request was in flight")
	case errors.Is(err, domain.ErrQueueEmpty):
		writeError(w, http.StatusConflict, codeQueueEmpty, err.Error())
	case errors.Is(err, domain.ErrNoActiveReview):
		writeError(w, http.StatusConflict, codeNoActiveReview, err.Error())
	case errors.As(err, &be):
		writeError(w, http.StatusBadGateway, codeBackend, be.Error())
	case errors.Is(err, domain.ErrNetwork):
		writeError(w, http.StatusGatewayTimeout, codeNetwork, "backend unreachable")
	case errors.Is(err, domain.ErrSchema):
		writeError(w, http.StatusBadGateway, codeSchema, "backend returned an unexpected payload")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func toDatabaseIDs(in []string) []domain.DatabaseID {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.DatabaseID, len(in))
	for i, db := range in {
		out[i] = domain.DatabaseID(strings.ToLower(strings.TrimSpace(db)))
	}
	return out
}

// jsonFieldName makes validator report fields by their JSON names.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
