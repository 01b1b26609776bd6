// Package screening is the review screening engine: the active review, its
// study registry, the pending-queue cursor and the PRISMA aggregates derived
// from them.
//
// The Store owns all state behind one mutex. Backend calls run outside the
// lock and their results are committed only if the active review is still
// the one the call was dispatched for; otherwise they are discarded with
// ErrStaleResponse.
package screening

import (
	"context"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/reviewapi"
)

// Backend is the systematic-review service the store reads from and writes to.
type Backend interface {
	ListReviews(ctx context.Context) ([]domain.Review, error)
	CreateReview(ctx context.Context, in domain.CreateReviewInput) (*domain.Review, error)
	DeleteReview(ctx context.Context, reviewID string) error
	Search(ctx context.Context, reviewID string, in reviewapi.SearchInput) (*reviewapi.SearchResult, error)
	ListStudies(ctx context.Context, reviewID string) (*reviewapi.StudiesPage, error)
	PatchStudy(ctx context.Context, reviewID string, patch reviewapi.StudyPatch) (*reviewapi.StudiesPage, error)
	PrismaFlow(ctx context.Context, reviewID string) (*domain.PrismaFlow, error)
}

// Compile-time interface verification.
var _ Backend = (*reviewapi.Client)(nil)

// Scope identifies the active review at the moment a request was dispatched.
// Epoch increases on every change of active review.
type Scope struct {
	ReviewID string `json:"review_id"`
	Epoch    uint64 `json:"epoch"`
}

// Operation names for stale-response metrics and logs.
const (
	opSelect     = "select"
	opSearch     = "search"
	opSetStatus  = "set_status"
	opBulkDecide = "bulk_decide"
	opRemoteFlow = "remote_flow"
)
