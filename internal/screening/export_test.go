package screening

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-screening/internal/domain"
)

func TestStore_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("no active review", func(t *testing.T) {
		_, err := newTestStore(t, newFakeBackend()).Export(ctx)
		assert.ErrorIs(t, err, domain.ErrNoActiveReview)
	})

	t.Run("journal failure", func(t *testing.T) {
		b := newFakeBackend()
		b.seedReview("r", pubmedOnly, pending("s1", domain.DatabasePubMed))
		store := newTestStore(t, b, func(o *Options) { o.Journal = failingJournal{} })
		selectSeeded(t, store, "r")

		_, err := store.Export(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read decision journal")
	})

	b := newFakeBackend()
	b.seedReview("r", pubmedOnly,
		pending("s1", domain.DatabasePubMed),
		pending("s2", domain.DatabasePubMed),
		pending("s3", domain.SourceOther),
	)
	store := newTestStore(t, b)
	selectSeeded(t, store, "r")

	empty, err := store.Export(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty.Decisions)
	assert.Empty(t, empty.Decisions)

	_, err = store.SetStatus(ctx, "s1", domain.Decision{Status: domain.ScreeningStatusMaybe})
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, "s1", titleAbstractExclusion)
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, "s2", domain.Decision{Status: domain.ScreeningStatusIncluded})
	require.NoError(t, err)

	export, err := store.Export(ctx)
	require.NoError(t, err)

	assert.Equal(t, "r", export.Review.ID)
	assert.Len(t, export.Studies, 3)
	assert.Len(t, export.Decisions, 3)
	assert.Equal(t, store.Flow().Included, export.PrismaFlow.Included)
	assert.Equal(t, 1, export.Statistics.Included)
	assert.Equal(t, 1, export.Statistics.Excluded)
	assert.WithinDuration(t, time.Now(), export.ExportedAt, time.Minute)
}

func TestExport_WriteCSV(t *testing.T) {
	decidedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := domain.NewDecisionRecord("r", "s1", domain.Decision{Status: domain.ScreeningStatusMaybe})
	older.DecidedAt = decidedAt.Add(-time.Hour)
	newer := domain.NewDecisionRecord("r", "s1", titleAbstractExclusion)
	newer.DecidedAt = decidedAt

	s1 := pending("s1", domain.DatabasePubMed)
	s1.Authors = []string{"Doe, J.", "Roe, R."}
	s1.DOI = "10.1000/xyz"
	s1.Abstract = "Line one,\nline \"two\""
	s1.Apply(titleAbstractExclusion)
	s2 := pending("s2", domain.SourceOther)
	s2.Year = 0

	export := &Export{
		Studies:   []domain.Study{s1, s2},
		Decisions: []domain.DecisionRecord{newer, older},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ExportColumns, rows[0])
	assert.Equal(t, []string{
		"s1", "Study s1", "Doe, J.; Roe, R.", "2022", "", "10.1000/xyz", "Line one,\nline \"two\"",
		"pubmed", "excluded", "title_abstract", "Wrong population", "2026-03-01T10:00:00Z",
	}, rows[1])
	assert.Equal(t, []string{
		"s2", "Study s2", "Doe, J.", "", "", "", "", "other", "pending", "", "", "",
	}, rows[2])
}
