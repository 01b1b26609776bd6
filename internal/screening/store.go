package screening

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/events"
	"github.com/helixir/review-screening/internal/journal"
	"github.com/helixir/review-screening/internal/observability"
	"github.com/helixir/review-screening/internal/reviewapi"
)

// publishTimeout bounds event delivery after a commit.
const publishTimeout = 5 * time.Second

// Options configures a Store. Zero values select an in-memory journal and
// no event publishing.
type Options struct {
	Journal   journal.Journal
	Publisher events.Publisher
	Emitter   *events.Emitter
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// CursorView is a read-only view of the screening cursor.
type CursorView struct {
	// Index is the cursor position, -1 when Empty.
	Index   int           `json:"index"`
	Pending int           `json:"pending"`
	Empty   bool          `json:"empty"`
	Study   *domain.Study `json:"study,omitempty"`
}

// Session is a consistent snapshot of the store.
type Session struct {
	Active     *domain.Review    `json:"active,omitempty"`
	Epoch      uint64            `json:"epoch"`
	Studies    []domain.Study    `json:"studies"`
	Cursor     CursorView        `json:"cursor"`
	Flow       domain.PrismaFlow `json:"prisma_flow"`
	Statistics domain.Statistics `json:"statistics"`
}

// Store coordinates the reviews, the active review's registry and cursor,
// and the derived PRISMA aggregates. It is safe for concurrent use.
type Store struct {
	backend   Backend
	journal   journal.Journal
	publisher events.Publisher
	emitter   *events.Emitter
	metrics   *observability.Metrics
	logger    zerolog.Logger

	mu        sync.Mutex
	reviews   []domain.Review
	active    *domain.Review
	epoch     uint64
	selectSeq uint64
	registry  *Registry
	cursor    *Cursor
	flow      domain.PrismaFlow
	stats     domain.Statistics
}

// NewStore creates a store with no active review.
func NewStore(backend Backend, opts Options) *Store {
	if opts.Journal == nil {
		opts.Journal = journal.NewMemory()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Emitter == nil {
		opts.Emitter = events.NewEmitter(events.EmitterConfig{})
	}

	s := &Store{
		backend:   backend,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "screening_store").Logger(),
		registry:  NewRegistry(),
		cursor:    NewCursor(),
	}
	s.recomputeLocked()
	return s
}

// Refresh reloads the review collection from the backend. If the active
// review no longer exists it is cleared along with its studies.
func (s *Store) Refresh(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.backend.ListReviews(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews = cloneReviews(reviews)
	if s.active != nil {
		if i := s.indexLocked(s.active.ID); i >= 0 {
			// Lifecycle status is driven locally.
			s.reviews[i].Status = s.active.Status
			s.active = s.reviews[i].Clone()
		} else {
			s.logger.Info().Str("review_id", s.active.ID).Msg("active review no longer listed, clearing")
			s.selectSeq++
			s.clearActiveLocked()
		}
	}
	return cloneReviews(s.reviews), nil
}

// Create validates and creates a review, prepends it to the collection and
// makes it active with an empty registry.
func (s *Store) Create(ctx context.Context, in domain.CreateReviewInput) (*domain.Review, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	review, err := s.backend.CreateReview(ctx, in)
	if err != nil {
		return nil, err
	}
	review.Status = domain.ReviewStatusDraft

	s.mu.Lock()
	s.reviews = append([]domain.Review{*review.Clone()}, s.withoutLocked(review.ID)...)
	s.selectSeq++
	s.activateLocked(review, nil)
	scope := s.scopeLocked()
	s.mu.Unlock()

	s.metrics.RecordReviewCreated()
	logger := observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch)
	logger.Info().
		Str("name", review.Name).
		Msg("review created")
	s.publish(ctx, domain.EventTypeReviewCreated, review.ID, domain.ReviewCreatedPayload{
		Name:             review.Name,
		ResearchQuestion: review.ResearchQuestion,
		Databases:        review.Databases,
	})
	return review.Clone(), nil
}

// Select makes a review active and loads its studies. A later Select, Create
// or removal of the active review supersedes an in-flight one, which then
// returns ErrStaleResponse without touching state.
func (s *Store) Select(ctx context.Context, reviewID string) (*domain.Review, error) {
	s.mu.Lock()
	if s.indexLocked(reviewID) < 0 {
		s.mu.Unlock()
		return nil, domain.NewNotFoundError("review", reviewID)
	}
	s.selectSeq++
	seq, epoch := s.selectSeq, s.epoch
	s.mu.Unlock()

	page, err := s.backend.ListStudies(observability.WithReviewScope(ctx, reviewID, epoch), reviewID)

	s.mu.Lock()
	if seq != s.selectSeq || epoch != s.epoch {
		s.mu.Unlock()
		s.discard(opSelect, Scope{ReviewID: reviewID, Epoch: epoch})
		return nil, domain.ErrStaleResponse
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	i := s.indexLocked(reviewID)
	if i < 0 {
		s.mu.Unlock()
		return nil, domain.NewNotFoundError("review", reviewID)
	}
	review := s.reviews[i].Clone()
	s.activateLocked(review, page.Studies)
	scope := s.scopeLocked()
	studyCount, pending := s.registry.Len(), s.cursor.Len()
	s.mu.Unlock()

	s.metrics.RecordReviewSelected()
	logger := observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch)
	logger.Info().
		Int("studies", studyCount).
		Int("pending", pending).
		Msg("review selected")
	s.publish(ctx, domain.EventTypeReviewSelected, reviewID, domain.ReviewSelectedPayload{
		StudyCount:   studyCount,
		PendingCount: pending,
	})
	return review.Clone(), nil
}

// Remove deletes a review. Removing an unknown or already removed id returns
// NotFoundError. Removing the active review clears the registry, cursor and
// PRISMA flow in the same critical section.
func (s *Store) Remove(ctx context.Context, reviewID string) error {
	s.mu.Lock()
	if s.indexLocked(reviewID) < 0 {
		s.mu.Unlock()
		return domain.NewNotFoundError("review", reviewID)
	}
	s.mu.Unlock()

	if err := s.backend.DeleteReview(ctx, reviewID); err != nil {
		var backendErr *domain.BackendError
		if !errors.As(err, &backendErr) || !backendErr.IsNotFound() {
			return err
		}
		s.logger.Info().Str("review_id", reviewID).Msg("review already absent on backend")
	}

	s.mu.Lock()
	i := s.indexLocked(reviewID)
	if i < 0 {
		s.mu.Unlock()
		return domain.NewNotFoundError("review", reviewID)
	}
	s.reviews = append(s.reviews[:i:i], s.reviews[i+1:]...)
	wasActive := s.active != nil && s.active.ID == reviewID
	if wasActive {
		s.selectSeq++
		s.clearActiveLocked()
	}
	s.mu.Unlock()

	if err := s.journal.DeleteReview(ctx, reviewID); err != nil {
		s.metrics.RecordJournalFailure()
		s.logger.Warn().Err(err).Str("review_id", reviewID).Msg("failed to drop journal entries")
	}
	s.metrics.RecordReviewDeleted()
	s.logger.Info().Str("review_id", reviewID).Bool("was_active", wasActive).Msg("review removed")
	s.publish(ctx, domain.EventTypeReviewDeleted, reviewID, struct{}{})
	return nil
}

// Search runs a literature search for the active review and merges the
// results. databases is intersected with the review's configured set; an
// empty list searches all of them.
func (s *Store) Search(ctx context.Context, databases []domain.DatabaseID, query string) (MergeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return MergeResult{}, domain.NewValidationError("query", "query is required")
	}
	for _, db := range databases {
		if !db.IsValid() {
			return MergeResult{}, domain.NewValidationError("databases", "unknown database: "+string(db))
		}
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return MergeResult{}, domain.ErrNoActiveReview
	}
	dbs, err := restrictDatabases(s.active.Databases, databases)
	scope := s.scopeLocked()
	s.mu.Unlock()
	if err != nil {
		return MergeResult{}, err
	}

	logger := observability.WithSearchContext(
		observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch), query, databaseStrings(dbs))
	callCtx := observability.WithReviewScope(ctx, scope.ReviewID, scope.Epoch)
	start := time.Now()

	res, err := s.backend.Search(callCtx, scope.ReviewID, reviewapi.SearchInput{Query: query, Databases: dbs})
	var listing []domain.Study
	if err == nil && res.Studies == nil {
		var page *reviewapi.StudiesPage
		if page, err = s.backend.ListStudies(callCtx, scope.ReviewID); err == nil {
			listing = page.Studies
		}
	}

	s.mu.Lock()
	if !s.currentLocked(scope) {
		s.mu.Unlock()
		s.discard(opSearch, scope)
		return MergeResult{}, domain.ErrStaleResponse
	}
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordSearchFailed(time.Since(start).Seconds())
		logger.Warn().Err(err).Msg("search failed")
		return MergeResult{}, err
	}

	var merged MergeResult
	if res.Studies != nil {
		merged = s.registry.Merge(dbs, res.Studies)
	} else {
		merged = s.registry.MergeListing(dbs, listing, res.StudiesFound)
	}
	s.cursor.Rebuild(s.registry.PendingIDs())
	s.transitionLocked(domain.ReviewStatusSearching)
	if s.active.Status == domain.ReviewStatusCompleted && !s.cursor.IsEmpty() {
		s.transitionLocked(domain.ReviewStatusScreening)
	}
	s.recomputeLocked()
	s.mu.Unlock()

	s.metrics.RecordSearchCompleted(merged.Added, merged.Duplicates, time.Since(start).Seconds())
	logger.Info().
		Int("found", merged.Found).
		Int("added", merged.Added).
		Int("duplicates", merged.Duplicates).
		Msg("search results merged")
	s.publish(ctx, domain.EventTypeSearchCompleted, scope.ReviewID, domain.SearchCompletedPayload{
		Query:             query,
		Databases:         dbs,
		StudiesFound:      merged.Found,
		StudiesAdded:      merged.Added,
		DuplicatesRemoved: merged.Duplicates,
	})
	return merged, nil
}

// SetStatus records a screening decision for a study of the active review.
// The backend is patched first; local state changes only on success. A
// decision the backend accepted is journaled even when the active review
// changed meanwhile, since the journal is keyed by review.
func (s *Store) SetStatus(ctx context.Context, studyID string, d domain.Decision) (domain.Study, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return domain.Study{}, err
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return domain.Study{}, domain.ErrNoActiveReview
	}
	if _, ok := s.registry.Get(studyID); !ok {
		s.mu.Unlock()
		return domain.Study{}, domain.NewNotFoundError("study", studyID)
	}
	scope := s.scopeLocked()
	s.mu.Unlock()

	logger := observability.WithStudyContext(
		observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch), studyID)

	fresh, err := s.patch(ctx, scope, studyID, d)
	if err == nil {
		s.journalDecision(ctx, logger, scope.ReviewID, studyID, d)
	}

	s.mu.Lock()
	if !s.currentLocked(scope) {
		s.mu.Unlock()
		s.discard(opSetStatus, scope)
		return domain.Study{}, domain.ErrStaleResponse
	}
	if err != nil {
		s.mu.Unlock()
		logger.Warn().Err(err).Msg("screening decision rejected")
		return domain.Study{}, err
	}
	if err := s.applyLocked(studyID, d, fresh); err != nil {
		s.mu.Unlock()
		return domain.Study{}, err
	}
	completed := s.settleLocked()
	study, _ := s.registry.Get(studyID)
	stats := s.stats
	s.mu.Unlock()

	s.announceDecision(ctx, logger, scope.ReviewID, studyID, d)
	if completed {
		s.publishCompleted(ctx, scope.ReviewID, stats)
	}
	return study, nil
}

// Decide applies a decision to the study under the cursor. The decided study
// leaves the queue and the cursor stays at the same index, clamped to the
// new tail, so it lands on the following study.
func (s *Store) Decide(ctx context.Context, d domain.Decision) (domain.Study, error) {
	s.mu.Lock()
	studyID, ok := s.cursor.Current()
	s.mu.Unlock()
	if !ok {
		return domain.Study{}, domain.ErrQueueEmpty
	}
	return s.SetStatus(ctx, studyID, d)
}

// Next advances the cursor; it is a no-op at the tail or when Empty.
func (s *Store) Next() CursorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor.Next()
	return s.cursorViewLocked()
}

// Previous moves the cursor back; it is a no-op at the head or when Empty.
func (s *Store) Previous() CursorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor.Previous()
	return s.cursorViewLocked()
}

// Cursor returns the current cursor position.
func (s *Store) Cursor() CursorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorViewLocked()
}

// History returns the journaled decisions for a study of the active review.
func (s *Store) History(ctx context.Context, studyID string) ([]domain.DecisionRecord, error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoActiveReview
	}
	if _, ok := s.registry.Get(studyID); !ok {
		s.mu.Unlock()
		return nil, domain.NewNotFoundError("study", studyID)
	}
	reviewID := s.active.ID
	s.mu.Unlock()

	return s.journal.History(ctx, reviewID, studyID)
}

// RemoteFlow fetches the backend's own PRISMA flow for the active review.
func (s *Store) RemoteFlow(ctx context.Context) (*domain.PrismaFlow, error) {
	scope, ok := s.Scope()
	if !ok {
		return nil, domain.ErrNoActiveReview
	}

	flow, err := s.backend.PrismaFlow(observability.WithReviewScope(ctx, scope.ReviewID, scope.Epoch), scope.ReviewID)

	s.mu.Lock()
	current := s.currentLocked(scope)
	s.mu.Unlock()
	if !current {
		s.discard(opRemoteFlow, scope)
		return nil, domain.ErrStaleResponse
	}
	return flow, err
}

// Recompute derives the PRISMA flow and statistics again from the registry.
// With no intervening mutation the result is identical to the previous one.
func (s *Store) Recompute() (domain.PrismaFlow, domain.Statistics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
	return s.flow.Clone(), s.stats.Clone()
}

// Scope returns the active review and epoch, false when none is active.
func (s *Store) Scope() (Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Scope{}, false
	}
	return s.scopeLocked(), true
}

// Active returns a copy of the active review, nil when none is active.
func (s *Store) Active() *domain.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// Reviews returns a copy of the review collection, newest created first.
func (s *Store) Reviews() []domain.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneReviews(s.reviews)
}

// Studies returns the studies of the active review in retrieval order.
func (s *Store) Studies() []domain.Study {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Studies()
}

// Flow returns the current PRISMA flow.
func (s *Store) Flow() domain.PrismaFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.Clone()
}

// Statistics returns the current screening statistics.
func (s *Store) Statistics() domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// Snapshot returns every piece of session state read under one lock.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		Active:     s.active.Clone(),
		Epoch:      s.epoch,
		Studies:    s.registry.Studies(),
		Cursor:     s.cursorViewLocked(),
		Flow:       s.flow.Clone(),
		Statistics: s.stats.Clone(),
	}
}

// patch sends one decision to the backend and returns the backend's copy of
// the study when the response lists it.
func (s *Store) patch(ctx context.Context, scope Scope, studyID string, d domain.Decision) (*domain.Study, error) {
	page, err := s.backend.PatchStudy(observability.WithReviewScope(ctx, scope.ReviewID, scope.Epoch),
		scope.ReviewID, reviewapi.NewStudyPatch(studyID, d))
	if err != nil {
		return nil, err
	}
	if study, ok := page.Find(studyID); ok {
		return &study, nil
	}
	return nil, nil
}

// applyLocked commits an accepted decision to the registry. The backend's
// copy of the study replaces the local one when it carries the same status.
// Other studies in the patch response are ignored: a concurrent decision may
// already be newer locally.
func (s *Store) applyLocked(studyID string, d domain.Decision, fresh *domain.Study) error {
	if err := s.registry.SetStatus(studyID, d); err != nil {
		return err
	}
	if fresh != nil && fresh.Status == d.Status {
		s.registry.Sync(*fresh)
	}
	return nil
}

// settleLocked rebuilds the queue after decisions and reports whether the
// review just completed.
func (s *Store) settleLocked() bool {
	s.cursor.Rebuild(s.registry.PendingIDs())
	completed := s.advanceAfterDecisionLocked()
	s.recomputeLocked()
	return completed
}

func (s *Store) journalDecision(ctx context.Context, logger zerolog.Logger, reviewID, studyID string, d domain.Decision) {
	if err := s.journal.Append(ctx, domain.NewDecisionRecord(reviewID, studyID, d)); err != nil {
		s.metrics.RecordJournalFailure()
		logger.Warn().Err(err).Msg("failed to journal screening decision")
	}
}

func (s *Store) announceDecision(ctx context.Context, logger zerolog.Logger, reviewID, studyID string, d domain.Decision) {
	s.metrics.RecordDecision(string(d.Status))
	logger.Info().Str("status", string(d.Status)).Msg("screening decision recorded")
	s.publish(ctx, domain.EventTypeStudyScreened, reviewID, domain.StudyScreenedPayload{
		StudyID:         studyID,
		Status:          d.Status,
		ExclusionReason: d.Reason,
		ExclusionStage:  d.Stage,
	})
}

func (s *Store) publishCompleted(ctx context.Context, reviewID string, stats domain.Statistics) {
	s.publish(ctx, domain.EventTypeScreeningCompleted, reviewID, domain.ScreeningCompletedPayload{
		Included: stats.Included,
		Excluded: stats.Excluded,
		Maybe:    stats.Maybe,
	})
}

func (s *Store) activateLocked(review *domain.Review, studies []domain.Study) {
	s.epoch++
	s.active = review.Clone()
	s.registry.Replace(review.ID, studies)
	s.cursor.Reset(s.registry.PendingIDs())
	s.recomputeLocked()
}

func (s *Store) clearActiveLocked() {
	s.epoch++
	s.active = nil
	s.registry.Clear()
	s.cursor.Clear()
	s.recomputeLocked()
}

func (s *Store) recomputeLocked() {
	studies := s.registry.Studies()
	s.flow = ComputeFlow(studies, s.registry.DatabasesSearched(), s.registry.DuplicatesRemoved())
	s.stats = ComputeStatistics(studies)
	s.metrics.SetPending(s.cursor.Len())
}

// advanceAfterDecisionLocked moves the active review through screening and
// reports whether this decision completed it.
func (s *Store) advanceAfterDecisionLocked() bool {
	s.transitionLocked(domain.ReviewStatusSearching)
	s.transitionLocked(domain.ReviewStatusScreening)
	if s.cursor.IsEmpty() {
		return s.transitionLocked(domain.ReviewStatusCompleted)
	}
	return false
}

// transitionLocked moves the active review to next if the lifecycle allows it.
func (s *Store) transitionLocked(next domain.ReviewStatus) bool {
	if s.active == nil || !s.active.Status.CanTransitionTo(next) {
		return false
	}
	s.active.Status = next
	s.active.UpdatedAt = time.Now().UTC()
	if i := s.indexLocked(s.active.ID); i >= 0 {
		s.reviews[i].Status = next
		s.reviews[i].UpdatedAt = s.active.UpdatedAt
	}
	return true
}

func (s *Store) scopeLocked() Scope {
	if s.active == nil {
		return Scope{Epoch: s.epoch}
	}
	return Scope{ReviewID: s.active.ID, Epoch: s.epoch}
}

func (s *Store) currentLocked(scope Scope) bool {
	return s.active != nil && s.active.ID == scope.ReviewID && s.epoch == scope.Epoch
}

func (s *Store) cursorViewLocked() CursorView {
	view := CursorView{
		Index:   s.cursor.Index(),
		Pending: s.cursor.Len(),
		Empty:   s.cursor.IsEmpty(),
	}
	if id, ok := s.cursor.Current(); ok {
		if study, ok := s.registry.Get(id); ok {
			view.Study = &study
		}
	}
	return view
}

func (s *Store) indexLocked(reviewID string) int {
	for i := range s.reviews {
		if s.reviews[i].ID == reviewID {
			return i
		}
	}
	return -1
}

func (s *Store) withoutLocked(reviewID string) []domain.Review {
	out := make([]domain.Review, 0, len(s.reviews))
	for i := range s.reviews {
		if s.reviews[i].ID != reviewID {
			out = append(out, s.reviews[i])
		}
	}
	return out
}

func (s *Store) discard(op string, scope Scope) {
	s.metrics.RecordStaleResponse(op)
	logger := observability.WithReviewContext(s.logger, scope.ReviewID, scope.Epoch)
	logger.Debug().
		Str("operation", op).
		Msg("discarded response for inactive review")
}

func (s *Store) publish(ctx context.Context, eventType, reviewID string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event, err := s.emitter.Emit(ctx, eventType, reviewID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.metrics.RecordEventFailed(eventType)
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("review_id", reviewID).
			Msg("failed to publish screening event")
		return
	}
	s.metrics.RecordEventPublished(eventType)
}

// restrictDatabases intersects the requested databases with the configured
// ones, keeping request order. An empty request selects every configured one.
func restrictDatabases(configured, requested []domain.DatabaseID) ([]domain.DatabaseID, error) {
	if len(configured) == 0 {
		return nil, domain.NewValidationError("databases", "review has no databases configured")
	}
	if len(requested) == 0 {
		return append([]domain.DatabaseID(nil), configured...), nil
	}

	allowed := make(map[domain.DatabaseID]struct{}, len(configured))
	for _, db := range configured {
		allowed[db] = struct{}{}
	}
	var out []domain.DatabaseID
	for _, db := range domain.UniqueDatabases(requested) {
		if _, ok := allowed[db]; ok {
			out = append(out, db)
		}
	}
	if len(out) == 0 {
		return nil, domain.NewValidationError("databases", "none of the requested databases are configured for this review")
	}
	return out, nil
}

func databaseStrings(dbs []domain.DatabaseID) []string {
	out := make([]string, len(dbs))
	for i, db := range dbs {
		out[i] = string(db)
	}
	return out
}

func cloneReviews(in []domain.Review) []domain.Review {
	out := make([]domain.Review, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
