package screening

import (
	"github.com/helixir/review-screening/internal/domain"
)

// MergeResult summarises one ingestion of search results.
type MergeResult struct {
	Found      int `json:"found"`
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// Registry holds the studies of the active review in retrieval order, keyed
// by id, together with the dedup counters PRISMA identification needs.
//
// A Registry is not safe for concurrent use; the Store guards it.
type Registry struct {
	reviewID   string
	studies    []domain.Study
	index      map[string]int
	duplicates int
	databases  map[domain.DatabaseID]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Clear()
	return r
}

// Clear drops every study and counter.
func (r *Registry) Clear() {
	r.reviewID = ""
	r.studies = nil
	r.index = make(map[string]int)
	r.duplicates = 0
	r.databases = make(map[domain.DatabaseID]struct{})
}

// Replace loads the studies of a review, discarding the previous set. The
// searched databases are seeded from the studies' sources because the
// backend does not report them; sources outside the searchable set are not
// counted. Repeated ids keep their first occurrence.
func (r *Registry) Replace(reviewID string, studies []domain.Study) {
	r.Clear()
	r.reviewID = reviewID
	for i := range studies {
		s := studies[i]
		if _, ok := r.index[s.ID]; ok {
			continue
		}
		r.append(s.Clone())
		if s.Source.IsValid() {
			r.databases[s.Source] = struct{}{}
		}
	}
}

// Merge ingests search results. New ids are appended as pending in the order
// given; ids already present count as duplicates and are not added again.
func (r *Registry) Merge(databases []domain.DatabaseID, studies []domain.Study) MergeResult {
	r.markSearched(databases)

	res := MergeResult{Found: len(studies)}
	for i := range studies {
		s := studies[i].Clone()
		if _, ok := r.index[s.ID]; ok {
			res.Duplicates++
			continue
		}
		s.Apply(domain.Decision{Status: domain.ScreeningStatusPending})
		r.append(s)
		res.Added++
	}
	r.duplicates += res.Duplicates
	return res
}

// MergeListing ingests a search whose response carried only a count. The
// fresh listing is scanned for ids never seen before; the remainder of found
// is attributed to duplicates.
func (r *Registry) MergeListing(databases []domain.DatabaseID, listing []domain.Study, found int) MergeResult {
	var fresh []domain.Study
	seen := make(map[string]struct{})
	for i := range listing {
		id := listing[i].ID
		if _, ok := r.index[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, listing[i])
	}

	res := r.Merge(databases, fresh)
	res.Found = found
	if extra := found - res.Added; extra > 0 {
		res.Duplicates += extra
		r.duplicates += extra
	}
	return res
}

// SetStatus applies a decision to one study. Reason and stage are kept only
// for exclusions.
func (r *Registry) SetStatus(studyID string, d domain.Decision) error {
	i, ok := r.index[studyID]
	if !ok {
		return domain.NewNotFoundError("study", studyID)
	}
	r.studies[i].Apply(d.Normalize())
	return nil
}

// Sync overwrites a known study with the backend's copy. It reports false
// for unknown ids, which are never added.
func (r *Registry) Sync(study domain.Study) bool {
	i, ok := r.index[study.ID]
	if !ok {
		return false
	}
	r.studies[i] = study.Clone()
	return true
}

// Get returns a copy of one study.
func (r *Registry) Get(studyID string) (domain.Study, bool) {
	i, ok := r.index[studyID]
	if !ok {
		return domain.Study{}, false
	}
	return r.studies[i].Clone(), true
}

// Studies returns a copy of the collection in retrieval order.
func (r *Registry) Studies() []domain.Study {
	out := make([]domain.Study, len(r.studies))
	for i := range r.studies {
		out[i] = r.studies[i].Clone()
	}
	return out
}

// PendingIDs is the pending queue: ids of pending studies in retrieval order.
func (r *Registry) PendingIDs() []string {
	var ids []string
	for i := range r.studies {
		if r.studies[i].IsPending() {
			ids = append(ids, r.studies[i].ID)
		}
	}
	return ids
}

// ReviewID is the review the studies belong to, empty when cleared.
func (r *Registry) ReviewID() string { return r.reviewID }

// Len is the number of distinct studies.
func (r *Registry) Len() int { return len(r.studies) }

// DuplicatesRemoved counts ids seen again by later searches.
func (r *Registry) DuplicatesRemoved() int { return r.duplicates }

// DatabasesSearched counts distinct databases searched or loaded.
func (r *Registry) DatabasesSearched() int { return len(r.databases) }

func (r *Registry) append(s domain.Study) {
	r.index[s.ID] = len(r.studies)
	r.studies = append(r.studies, s)
}

func (r *Registry) markSearched(databases []domain.DatabaseID) {
	for _, db := range databases {
		r.databases[db] = struct{}{}
	}
}
