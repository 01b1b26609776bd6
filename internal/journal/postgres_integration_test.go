//go:build integration

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/review-screening/internal/config"
	"github.com/helixir/review-screening/internal/database"
	"github.com/helixir/review-screening/internal/domain"
)

// startPostgres runs a disposable PostgreSQL container with the journal
// migrations applied.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("review_screening"),
		tcpostgres.WithUsername("screening"),
		tcpostgres.WithPassword("screening"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:              host,
		Port:              port.Int(),
		User:              "screening",
		Password:          "screening",
		Name:              "review_screening",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          4,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}

	db, err := database.New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	migrator, err := database.NewMigrator(db, filepath.Join("..", "..", "migrations"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	return db
}

func TestPostgres_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	j := NewPostgres(db)

	assert.Equal(t, "healthy", db.Health(ctx).Status)

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	first := excludedRecord("r1", "s1", t0)
	second := domain.NewDecisionRecord("r1", "s1", domain.Decision{Status: domain.ScreeningStatusMaybe})
	second.DecidedAt = t0.Add(time.Second)

	require.NoError(t, j.Append(ctx, first))
	require.NoError(t, j.Append(ctx, second))

	history, err := j.History(ctx, "r1", "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ExclusionReason, history[1].ExclusionReason)
	assert.Equal(t, domain.ExclusionStageTitleAbstract, history[1].ExclusionStage)

	other := domain.NewDecisionRecord("r1", "s2", domain.Decision{Status: domain.ScreeningStatusIncluded})
	other.DecidedAt = t0.Add(2 * time.Second)
	require.NoError(t, j.Append(ctx, other))
	require.NoError(t, j.Append(ctx, excludedRecord("r2", "s1", t0)))

	all, err := j.ReviewHistory(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	require.NoError(t, j.DeleteReview(ctx, "r1"))
	history, err = j.History(ctx, "r1", "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
