package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PrismaFlow holds the four PRISMA 2020 buckets derived from a review's studies.
type PrismaFlow struct {
	Identification Identification `json:"identification"`
	Screening      ScreeningStage `json:"screening"`
	Eligibility    Eligibility    `json:"eligibility"`
	Included       IncludedStage  `json:"included"`
	FlowArrows     []FlowArrow    `json:"flow_arrows"`
}

// Identification counts records found across the searched databases.
type Identification struct {
	RecordsIdentified int `json:"records_identified" validate:"gte=0"`
	DuplicatesRemoved int `json:"duplicates_removed" validate:"gte=0"`
	DatabasesSearched int `json:"databases_searched" validate:"gte=0"`
	RecordsAfterDedup int `json:"records_after_dedup" validate:"gte=0"`
}

// ScreeningStage counts title/abstract screening outcomes.
type ScreeningStage struct {
	RecordsScreened  int          `json:"records_screened" validate:"gte=0"`
	RecordsExcluded  int          `json:"records_excluded" validate:"gte=0"`
	ExclusionReasons ReasonCounts `json:"exclusion_reasons"`
}

// Eligibility counts full-text assessment outcomes.
type Eligibility struct {
	FullTextAssessed int          `json:"full_text_assessed" validate:"gte=0"`
	FullTextExcluded int          `json:"full_text_excluded" validate:"gte=0"`
	ExclusionReasons ReasonCounts `json:"exclusion_reasons"`
}

// IncludedStage is the final evidence set size.
type IncludedStage struct {
	StudiesIncluded int `json:"studies_included" validate:"gte=0"`
}

// ReasonCount is the number of exclusions sharing a reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ReasonCounts is an ordered list of exclusion reasons, most frequent first
// and alphabetical within equal counts.
type ReasonCounts []ReasonCount

// NewReasonCounts builds the canonical ordering from a reason tally.
func NewReasonCounts(tally map[string]int) ReasonCounts {
	out := make(ReasonCounts, 0, len(tally))
	for reason, n := range tally {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// UnmarshalJSON accepts either a list of {reason, count} objects or an
// object mapping reason to count, as some backends send.
func (r *ReasonCounts) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	var list []ReasonCount
	if err := json.Unmarshal(data, &list); err == nil {
		*r = list
		return nil
	}
	var tally map[string]int
	if err := json.Unmarshal(data, &tally); err != nil {
		return fmt.Errorf("exclusion_reasons: expected list or object: %w", err)
	}
	*r = NewReasonCounts(tally)
	return nil
}

// Total sums the counts.
func (r ReasonCounts) Total() int {
	n := 0
	for _, rc := range r {
		n += rc.Count
	}
	return n
}

// FlowArrow is one edge of the flow diagram.
type FlowArrow struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Statistics summarises screening progress for a review.
type Statistics struct {
	Total      int             `json:"total" validate:"gte=0"`
	Included   int             `json:"included" validate:"gte=0"`
	Excluded   int             `json:"excluded" validate:"gte=0"`
	Pending    int             `json:"pending" validate:"gte=0"`
	Maybe      int             `json:"maybe" validate:"gte=0"`
	ByYear     []YearCount     `json:"by_year"`
	ByDatabase []DatabaseCount `json:"by_database"`
}

// YearCount groups studies by publication year. Year 0 collects unknown years.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// DatabaseCount groups studies by source database.
type DatabaseCount struct {
	Database DatabaseID `json:"database"`
	Count    int        `json:"count"`
}

// Screened returns the number of studies that have left the pending queue.
func (s Statistics) Screened() int {
	return s.Total - s.Pending
}

// Clone returns a deep copy of the flow. Empty slices stay non-nil so they
// encode as [].
func (f PrismaFlow) Clone() PrismaFlow {
	f.Screening.ExclusionReasons = cloneSlice(f.Screening.ExclusionReasons)
	f.Eligibility.ExclusionReasons = cloneSlice(f.Eligibility.ExclusionReasons)
	f.FlowArrows = cloneSlice(f.FlowArrows)
	return f
}

// Clone returns a deep copy of the statistics.
func (s Statistics) Clone() Statistics {
	s.ByYear = cloneSlice(s.ByYear)
	s.ByDatabase = cloneSlice(s.ByDatabase)
	return s
}

func cloneSlice[S ~[]E, E any](in S) S {
	if in == nil {
		return nil
	}
	out := make(S, len(in))
	copy(out, in)
	return out
}
