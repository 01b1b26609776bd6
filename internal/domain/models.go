// Package domain provides domain models and business logic for the review screening engine.
package domain

// ReviewStatus represents the lifecycle states of a systematic review.
// These values must match the backend's review status strings.
type ReviewStatus string

const (
	ReviewStatusDraft     ReviewStatus = "draft"
	ReviewStatusSearching ReviewStatus = "searching"
	ReviewStatusScreening ReviewStatus = "screening"
	ReviewStatusCompleted ReviewStatus = "completed"
)

// validReviewTransitions lists the allowed forward moves of a review.
// completed -> screening reopens a review when a later search adds pending studies.
var validReviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewStatusDraft:     {ReviewStatusSearching},
	ReviewStatusSearching: {ReviewStatusScreening},
	ReviewStatusScreening: {ReviewStatusCompleted},
	ReviewStatusCompleted: {ReviewStatusScreening},
}

// IsValid reports whether s is a known review status.
func (s ReviewStatus) IsValid() bool {
	_, ok := validReviewTransitions[s]
	return ok
}

// CanTransitionTo reports whether a review may move from s to next.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range validReviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ScreeningStatus is the screening decision state of a study.
type ScreeningStatus string

const (
	ScreeningStatusPending  ScreeningStatus = "pending"
	ScreeningStatusIncluded ScreeningStatus = "included"
	ScreeningStatusExcluded ScreeningStatus = "excluded"
	ScreeningStatusMaybe    ScreeningStatus = "maybe"
)

// IsValid reports whether s is a known screening status.
func (s ScreeningStatus) IsValid() bool {
	switch s {
	case ScreeningStatusPending, ScreeningStatusIncluded, ScreeningStatusExcluded, ScreeningStatusMaybe:
		return true
	default:
		return false
	}
}

// IsDecided returns true once a study has left the pending queue.
func (s ScreeningStatus) IsDecided() bool {
	return s != ScreeningStatusPending
}

// ExclusionStage records where in the PRISMA flow a study was excluded.
type ExclusionStage string

const (
	ExclusionStageTitleAbstract ExclusionStage = "title_abstract"
	ExclusionStageFullText      ExclusionStage = "full_text"
)

// IsValid reports whether s is a known exclusion stage.
func (s ExclusionStage) IsValid() bool {
	return s == ExclusionStageTitleAbstract || s == ExclusionStageFullText
}

// DatabaseID identifies a literature database a review can search.
type DatabaseID string

const (
	DatabasePubMed          DatabaseID = "pubmed"
	DatabaseArXiv           DatabaseID = "arxiv"
	DatabaseSemanticScholar DatabaseID = "semantic_scholar"
	DatabaseOpenAlex        DatabaseID = "openalex"
	DatabaseScopus          DatabaseID = "scopus"
	DatabaseBioRxiv         DatabaseID = "biorxiv"
	DatabaseManual          DatabaseID = "manual"
)

// SourceOther groups studies whose source is missing. It is not searchable.
const SourceOther DatabaseID = "other"

// KnownDatabases returns every database id the engine accepts.
func KnownDatabases() []DatabaseID {
	return []DatabaseID{
		DatabasePubMed,
		DatabaseArXiv,
		DatabaseSemanticScholar,
		DatabaseOpenAlex,
		DatabaseScopus,
		DatabaseBioRxiv,
		DatabaseManual,
	}
}

// IsValid reports whether d is a known database id.
func (d DatabaseID) IsValid() bool {
	for _, known := range KnownDatabases() {
		if d == known {
			return true
		}
	}
	return false
}
