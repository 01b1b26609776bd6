package screening

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/reviewapi"
)

// fakeBackend is an in-memory systematic-review backend. Hooks override
// individual operations; errs fails an operation by name.
type fakeBackend struct {
	mu      sync.Mutex
	reviews []domain.Review
	studies map[string][]domain.Study
	nextID  int
	patches []reviewapi.StudyPatch
	creates int
	errs    map[string]error

	searchFn func(ctx context.Context, reviewID string, in reviewapi.SearchInput) (*reviewapi.SearchResult, error)
	listFn   func(ctx context.Context, reviewID string) (*reviewapi.StudiesPage, error)
	patchFn  func(ctx context.Context, reviewID string, patch reviewapi.StudyPatch) (*reviewapi.StudiesPage, error)
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		studies: make(map[string][]domain.Study),
		errs:    make(map[string]error),
	}
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeBackend) errFor(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// seedReview adds a review with studies directly, as if created earlier.
func (f *fakeBackend) seedReview(id string, dbs []domain.DatabaseID, studies ...domain.Study) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, domain.Review{
		ID:               id,
		Name:             "Review " + id,
		ResearchQuestion: "Question " + id,
		Databases:        dbs,
		Status:           domain.ReviewStatusScreening,
	})
	f.studies[id] = append([]domain.Study(nil), studies...)
}

// searchReturning makes each Search call return the next batch, in full.
func (f *fakeBackend) searchReturning(batches ...[]domain.Study) {
	var n int
	f.searchFn = func(_ context.Context, reviewID string, _ reviewapi.SearchInput) (*reviewapi.SearchResult, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if n >= len(batches) {
			return &reviewapi.SearchResult{Studies: []domain.Study{}}, nil
		}
		batch := batches[n]
		n++
		f.storeLocked(reviewID, batch)
		return &reviewapi.SearchResult{
			StudiesFound: len(batch),
			Message:      fmt.Sprintf("Found %d studies", len(batch)),
			Studies:      batch,
		}, nil
	}
}

func (f *fakeBackend) storeLocked(reviewID string, batch []domain.Study) {
	for _, s := range batch {
		known := false
		for _, existing := range f.studies[reviewID] {
			if existing.ID == s.ID {
				known = true
				break
			}
		}
		if !known {
			f.studies[reviewID] = append(f.studies[reviewID], s)
		}
	}
}

func (f *fakeBackend) ListReviews(context.Context) ([]domain.Review, error) {
	if err := f.errFor("list_reviews"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Review(nil), f.reviews...), nil
}

func (f *fakeBackend) CreateReview(_ context.Context, in domain.CreateReviewInput) (*domain.Review, error) {
	if err := f.errFor("create_review"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.nextID++
	now := time.Now().UTC()
	r := domain.Review{
		ID:                fmt.Sprintf("new-%d", f.nextID),
		Name:              in.Name,
		ResearchQuestion:  in.ResearchQuestion,
		InclusionCriteria: in.InclusionCriteria,
		ExclusionCriteria: in.ExclusionCriteria,
		Databases:         in.Databases,
		Status:            domain.ReviewStatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.reviews = append([]domain.Review{r}, f.reviews...)
	return &r, nil
}

func (f *fakeBackend) DeleteReview(_ context.Context, reviewID string) error {
	if err := f.errFor("delete_review"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == reviewID {
			f.reviews = append(f.reviews[:i], f.reviews[i+1:]...)
			delete(f.studies, reviewID)
			return nil
		}
	}
	return domain.NewBackendError("delete_review", http.StatusNotFound, "Review not found")
}

func (f *fakeBackend) Search(ctx context.Context, reviewID string, in reviewapi.SearchInput) (*reviewapi.SearchResult, error) {
	if err := f.errFor("search"); err != nil {
		return nil, err
	}
	if f.searchFn == nil {
		return nil, errors.New("search not configured")
	}
	return f.searchFn(ctx, reviewID, in)
}

func (f *fakeBackend) ListStudies(ctx context.Context, reviewID string) (*reviewapi.StudiesPage, error) {
	if err := f.errFor("list_studies"); err != nil {
		return nil, err
	}
	if f.listFn != nil {
		return f.listFn(ctx, reviewID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &reviewapi.StudiesPage{Studies: append([]domain.Study(nil), f.studies[reviewID]...)}, nil
}

func (f *fakeBackend) PatchStudy(ctx context.Context, reviewID string, patch reviewapi.StudyPatch) (*reviewapi.StudiesPage, error) {
	if err := f.errFor("patch_study"); err != nil {
		return nil, err
	}
	if f.patchFn != nil {
		return f.patchFn(ctx, reviewID, patch)
	}
	return f.applyPatch(reviewID, patch), nil
}

// applyPatch records the patch and returns the updated listing.
func (f *fakeBackend) applyPatch(reviewID string, patch reviewapi.StudyPatch) *reviewapi.StudiesPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	for i := range f.studies[reviewID] {
		if f.studies[reviewID][i].ID == patch.StudyID {
			f.studies[reviewID][i].Status = patch.Status
			f.studies[reviewID][i].ExclusionReason = patch.ExclusionReason
			f.studies[reviewID][i].ExclusionStage = patch.ExclusionStage
		}
	}
	return &reviewapi.StudiesPage{Studies: append([]domain.Study(nil), f.studies[reviewID]...)}
}

func (f *fakeBackend) PrismaFlow(context.Context, string) (*domain.PrismaFlow, error) {
	if err := f.errFor("prisma_flow"); err != nil {
		return nil, err
	}
	return &domain.PrismaFlow{Included: domain.IncludedStage{StudiesIncluded: 7}}, nil
}

func (f *fakeBackend) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ScreeningEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.ScreeningEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

// failingJournal rejects every append.
type failingJournal struct{}

func (failingJournal) Append(context.Context, domain.DecisionRecord) error {
	return errors.New("journal unavailable")
}

func (failingJournal) History(context.Context, string, string) ([]domain.DecisionRecord, error) {
	return nil, errors.New("journal unavailable")
}

func (failingJournal) ReviewHistory(context.Context, string) ([]domain.DecisionRecord, error) {
	return nil, errors.New("journal unavailable")
}

func (failingJournal) DeleteReview(context.Context, string) error {
	return errors.New("journal unavailable")
}
