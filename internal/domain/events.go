package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for screening events.
const (
	EventTypeReviewCreated      = "review.created"
	EventTypeReviewSelected     = "review.selected"
	EventTypeReviewDeleted      = "review.deleted"
	EventTypeSearchCompleted    = "review.search_completed"
	EventTypeStudyScreened      = "review.study_screened"
	EventTypeScreeningCompleted = "review.screening_completed"
)

// ScreeningEvent is a lifecycle notification emitted after a state change commits.
type ScreeningEvent struct {
	EventID      string          `json:"event_id"`
	EventVersion int             `json:"event_version"`
	EventType    string          `json:"event_type"`
	ReviewID     string          `json:"review_id"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`

	// Source names the emitting service.
	Source string `json:"source,omitempty"`
	// CorrelationID carries the request id that caused the event, if any.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewScreeningEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewScreeningEvent(eventType, reviewID string, payload interface{}) (*ScreeningEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &ScreeningEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		ReviewID:     reviewID,
		Payload:      payloadBytes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ReviewCreatedPayload is the payload for review.created events.
type ReviewCreatedPayload struct {
	Name             string       `json:"name"`
	ResearchQuestion string       `json:"research_question"`
	Databases        []DatabaseID `json:"databases"`
}

// ReviewSelectedPayload is the payload for review.selected events.
type ReviewSelectedPayload struct {
	StudyCount   int `json:"study_count"`
	PendingCount int `json:"pending_count"`
}

// SearchCompletedPayload is the payload for review.search_completed events.
type SearchCompletedPayload struct {
	Query             string       `json:"query"`
	Databases         []DatabaseID `json:"databases"`
	StudiesFound      int          `json:"studies_found"`
	StudiesAdded      int          `json:"studies_added"`
	DuplicatesRemoved int          `json:"duplicates_removed"`
}

// StudyScreenedPayload is the payload for review.study_screened events.
type StudyScreenedPayload struct {
	StudyID         string          `json:"study_id"`
	Status          ScreeningStatus `json:"status"`
	ExclusionReason string          `json:"exclusion_reason,omitempty"`
	ExclusionStage  ExclusionStage  `json:"exclusion_stage,omitempty"`
}

// ScreeningCompletedPayload is the payload for review.screening_completed events.
type ScreeningCompletedPayload struct {
	Included int `json:"included"`
	Excluded int `json:"excluded"`
	Maybe    int `json:"maybe"`
}

// DecisionRecord is a journal entry for one committed screening decision.
type DecisionRecord struct {
	ID              uuid.UUID       `json:"id"`
	ReviewID        string          `json:"review_id"`
	StudyID         string          `json:"study_id"`
	Status          ScreeningStatus `json:"status"`
	ExclusionStage  ExclusionStage  `json:"exclusion_stage,omitempty"`
	ExclusionReason string          `json:"exclusion_reason,omitempty"`
	DecidedAt       time.Time       `json:"decided_at"`
}

// NewDecisionRecord builds a journal entry from a normalized decision.
func NewDecisionRecord(reviewID, studyID string, d Decision) DecisionRecord {
	return DecisionRecord{
		ID:              uuid.New(),
		ReviewID:        reviewID,
		StudyID:         studyID,
		Status:          d.Status,
		ExclusionStage:  d.Stage,
		ExclusionReason: d.Reason,
		DecidedAt:       time.Now().UTC(),
	}
}
