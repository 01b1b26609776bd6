package domain

import "strings"

// Study is a candidate record retrieved for a review and tagged with a screening status.
type Study struct {
	ID      string   `json:"id" validate:"required"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`

	// Year is the publication year; 0 when unknown.
	Year     int        `json:"year" validate:"gte=0"`
	// Source is where the study came from. It is free text: besides the
	// searchable databases backends report values such as "manual" or "other".
	Source   DatabaseID `json:"source"`
	Abstract string     `json:"abstract"`

	DOI     string `json:"doi,omitempty"`
	Journal string `json:"journal,omitempty"`
	URL     string `json:"url,omitempty"`

	Status          ScreeningStatus `json:"status" validate:"screening_status"`
	ExclusionReason string          `json:"exclusion_reason,omitempty"`
	ExclusionStage  ExclusionStage  `json:"exclusion_stage,omitempty" validate:"omitempty,exclusion_stage"`
}

// Clone returns a copy that does not share the author slice.
func (s Study) Clone() Study {
	s.Authors = append([]string(nil), s.Authors...)
	return s
}

// Origin returns the source, or SourceOther when none was recorded.
func (s *Study) Origin() DatabaseID {
	if strings.TrimSpace(string(s.Source)) == "" {
		return SourceOther
	}
	return s.Source
}

// IsPending reports whether the study is still waiting for a decision.
func (s *Study) IsPending() bool {
	return s.Status == ScreeningStatusPending
}

// Apply records a screening decision on the study. The decision must already
// be normalized.
func (s *Study) Apply(d Decision) {
	s.Status = d.Status
	s.ExclusionReason = d.Reason
	s.ExclusionStage = d.Stage
}

// Decision is a screening verdict for one study.
type Decision struct {
	Status ScreeningStatus `json:"status"`
	// Reason is only meaningful for exclusions.
	Reason string `json:"exclusion_reason,omitempty"`
	// Stage is required for exclusions so PRISMA can place them.
	Stage ExclusionStage `json:"exclusion_stage,omitempty"`
}

// Normalize drops reason and stage unless the decision is an exclusion.
// A reason paired with another status is ignored, not rejected.
func (d Decision) Normalize() Decision {
	d.Reason = strings.TrimSpace(d.Reason)
	if d.Status != ScreeningStatusExcluded {
		d.Reason = ""
		d.Stage = ""
	}
	return d
}

// Validate checks the decision before it is sent.
func (d Decision) Validate() error {
	if !d.Status.IsValid() {
		return NewValidationError("status", "unknown screening status: "+string(d.Status))
	}
	if d.Status == ScreeningStatusExcluded && !d.Stage.IsValid() {
		return NewValidationError("exclusion_stage", "exclusions require a stage (title_abstract or full_text)")
	}
	return nil
}
