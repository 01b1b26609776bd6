package domain

import (
	"strings"
	"time"
)

// Review is a systematic literature review project.
type Review struct {
	ID string `json:"id" validate:"required"`

	// Name is the project title shown to the user.
	Name string `json:"name" validate:"required"`

	// ResearchQuestion is the question the review answers.
	ResearchQuestion string `json:"research_question" validate:"required"`

	// InclusionCriteria and ExclusionCriteria keep the user's ordering.
	InclusionCriteria []string `json:"inclusion_criteria"`
	ExclusionCriteria []string `json:"exclusion_criteria"`

	// Databases is the set of literature databases this review searches.
	Databases []DatabaseID `json:"databases" validate:"dive,database"`

	Status ReviewStatus `json:"status" validate:"review_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDatabase reports whether the review is configured to search db.
func (r *Review) HasDatabase(db DatabaseID) bool {
	for _, d := range r.Databases {
		if d == db {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate engine state.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	c := *r
	c.InclusionCriteria = append([]string(nil), r.InclusionCriteria...)
	c.ExclusionCriteria = append([]string(nil), r.ExclusionCriteria...)
	c.Databases = append([]DatabaseID(nil), r.Databases...)
	return &c
}

// CreateReviewInput carries the user-provided fields for a new review.
type CreateReviewInput struct {
	Name              string       `json:"name"`
	ResearchQuestion  string       `json:"research_question"`
	Databases         []DatabaseID `json:"databases"`
	InclusionCriteria []string     `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria []string     `json:"exclusion_criteria,omitempty"`
}

// Normalize trims text fields, drops blank criteria and deduplicates databases
// while keeping their order.
func (in CreateReviewInput) Normalize() CreateReviewInput {
	out := CreateReviewInput{
		Name:              strings.TrimSpace(in.Name),
		ResearchQuestion:  strings.TrimSpace(in.ResearchQuestion),
		Databases:         UniqueDatabases(in.Databases),
		InclusionCriteria: compactStrings(in.InclusionCriteria),
		ExclusionCriteria: compactStrings(in.ExclusionCriteria),
	}
	return out
}

// Validate checks the input before any network call is made.
func (in CreateReviewInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(in.ResearchQuestion) == "" {
		return NewValidationError("research_question", "research question is required")
	}
	for _, db := range in.Databases {
		if !db.IsValid() {
			return NewValidationError("databases", "unknown database: "+string(db))
		}
	}
	return nil
}

// UniqueDatabases removes duplicate ids, keeping first occurrence order.
func UniqueDatabases(dbs []DatabaseID) []DatabaseID {
	if len(dbs) == 0 {
		return nil
	}
	seen := make(map[DatabaseID]struct{}, len(dbs))
	out := make([]DatabaseID, 0, len(dbs))
	for _, db := range dbs {
		if _, ok := seen[db]; ok {
			continue
		}
		seen[db] = struct{}{}
		out = append(out, db)
	}
	return out
}

func compactStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
