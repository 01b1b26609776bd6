package screening

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/review-screening/internal/domain"
)

// Export is a self-contained copy of the active review: its studies, the
// journaled decisions and the derived PRISMA aggregates.
type Export struct {
	Review     domain.Review           `json:"review"`
	Studies    []domain.Study          `json:"studies"`
	Decisions  []domain.DecisionRecord `json:"screening_decisions"`
	PrismaFlow domain.PrismaFlow       `json:"prisma_flow"`
	Statistics domain.Statistics       `json:"statistics"`
	ExportedAt time.Time               `json:"export_date"`
}

// Export snapshots the active review together with every decision the
// journal holds for it, newest first.
func (s *Store) Export(ctx context.Context) (*Export, error) {
	snap := s.Snapshot()
	if snap.Active == nil {
		return nil, domain.ErrNoActiveReview
	}

	decisions, err := s.journal.ReviewHistory(ctx, snap.Active.ID)
	if err != nil {
		return nil, fmt.Errorf("read decision journal: %w", err)
	}
	if decisions == nil {
		decisions = []domain.DecisionRecord{}
	}

	return &Export{
		Review:     *snap.Active,
		Studies:    snap.Studies,
		Decisions:  decisions,
		PrismaFlow: snap.Flow,
		Statistics: snap.Statistics,
		ExportedAt: time.Now().UTC(),
	}, nil
}

// ExportColumns is the header row written by WriteCSV.
var ExportColumns = []string{
	"id", "title", "authors", "year", "journal", "doi", "abstract",
	"source", "status", "exclusion_stage", "exclusion_reason", "decided_at",
}

// WriteCSV writes one row per study in retrieval order. Authors are joined
// with "; ", an unknown year is blank and decided_at is the time of the
// study's latest journaled decision.
func (e *Export) WriteCSV(w io.Writer) error {
	latest := make(map[string]time.Time, len(e.Decisions))
	for _, rec := range e.Decisions {
		if t, ok := latest[rec.StudyID]; !ok || rec.DecidedAt.After(t) {
			latest[rec.StudyID] = rec.DecidedAt
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, st := range e.Studies {
		year := ""
		if st.Year > 0 {
			year = strconv.Itoa(st.Year)
		}
		decided := ""
		if t, ok := latest[st.ID]; ok {
			decided = t.UTC().Format(time.RFC3339)
		}
		row := []string{
			st.ID,
			st.Title,
			strings.Join(st.Authors, "; "),
			year,
			st.Journal,
			st.DOI,
			st.Abstract,
			string(st.Source),
			string(st.Status),
			string(st.ExclusionStage),
			st.ExclusionReason,
			decided,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", st.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
