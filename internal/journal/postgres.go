package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/review-screening/internal/database"
	"github.com/helixir/review-screening/internal/domain"
)

// Compile-time interface verification.
var _ Journal = (*Postgres)(nil)

// Postgres is a Journal backed by the screening_decisions table.
type Postgres struct {
	db database.DBTX
}

// NewPostgres creates a PostgreSQL journal.
func NewPostgres(db database.DBTX) *Postgres {
	return &Postgres{db: db}
}

// Append implements Journal.
func (p *Postgres) Append(ctx context.Context, rec domain.DecisionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO screening_decisions (
			id, review_id, study_id, status, exclusion_stage, exclusion_reason, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := p.db.Exec(ctx, query,
		rec.ID,
		rec.ReviewID,
		rec.StudyID,
		string(rec.Status),
		nullString(string(rec.ExclusionStage)),
		nullString(rec.ExclusionReason),
		rec.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append screening decision: %w", err)
	}
	return nil
}

// History implements Journal.
func (p *Postgres) History(ctx context.Context, reviewID, studyID string) ([]domain.DecisionRecord, error) {
	query := `
		SELECT id, review_id, study_id, status, exclusion_stage, exclusion_reason, decided_at
		FROM screening_decisions
		WHERE review_id = $1 AND study_id = $2
		ORDER BY decided_at DESC`

	return p.query(ctx, query, reviewID, studyID)
}

// ReviewHistory implements Journal.
func (p *Postgres) ReviewHistory(ctx context.Context, reviewID string) ([]domain.DecisionRecord, error) {
	query := `
		SELECT id, review_id, study_id, status, exclusion_stage, exclusion_reason, decided_at
		FROM screening_decisions
		WHERE review_id = $1
		ORDER BY decided_at DESC, study_id`

	return p.query(ctx, query, reviewID)
}

func (p *Postgres) query(ctx context.Context, query string, args ...interface{}) ([]domain.DecisionRecord, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query screening decisions: %w", err)
	}
	defer rows.Close()

	records := []domain.DecisionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate screening decisions: %w", err)
	}
	return records, nil
}

// DeleteReview implements Journal.
func (p *Postgres) DeleteReview(ctx context.Context, reviewID string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM screening_decisions WHERE review_id = $1`, reviewID); err != nil {
		return fmt.Errorf("failed to delete screening decisions: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.DecisionRecord, error) {
	var (
		rec    domain.DecisionRecord
		status string
		stage  *string
		reason *string
	)
	if err := row.Scan(&rec.ID, &rec.ReviewID, &rec.StudyID, &status, &stage, &reason, &rec.DecidedAt); err != nil {
		return domain.DecisionRecord{}, fmt.Errorf("failed to scan screening decision: %w", err)
	}
	rec.Status = domain.ScreeningStatus(status)
	if stage != nil {
		rec.ExclusionStage = domain.ExclusionStage(*stage)
	}
	if reason != nil {
		rec.ExclusionReason = *reason
	}
	return rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
