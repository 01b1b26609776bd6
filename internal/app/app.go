// Package app assembles the screening engine from configuration. It is shared
// by the console server and the screenctl CLI.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/review-screening/internal/config"
	"github.com/helixir/review-screening/internal/database"
	"github.com/helixir/review-screening/internal/events"
	"github.com/helixir/review-screening/internal/journal"
	"github.com/helixir/review-screening/internal/observability"
	"github.com/helixir/review-screening/internal/reviewapi"
	"github.com/helixir/review-screening/internal/screening"
)

// Runtime holds the assembled engine and the resources it owns.
type Runtime struct {
	Store     *screening.Store
	Client    *reviewapi.Client
	Publisher events.Publisher
	Metrics   *observability.Metrics

	// DB is nil unless the journal driver is postgres.
	DB *database.DB

	logger zerolog.Logger
}

// Options tunes how the runtime is assembled.
type Options struct {
	// WithMetrics registers Prometheus collectors. Only one runtime per
	// process may enable it.
	WithMetrics bool
}

// New wires the backend client, journal, event publisher and store described
// by cfg. The caller must Close the runtime.
func New(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{logger: logger}

	if opts.WithMetrics && cfg.Metrics.Enabled {
		rt.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	httpClient := reviewapi.NewHTTPClient(reviewapi.HTTPClientConfig{
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		BurstSize: cfg.Backend.RateBurst,
		UserAgent: cfg.Backend.UserAgent,
	})

	client, err := reviewapi.NewClient(cfg.Backend.BaseURL, httpClient, tokenSource(cfg.Auth, httpClient), rt.Metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	rt.Client = client

	jrnl, err := rt.openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}

	if cfg.Events.Enabled {
		rt.Publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			BatchSize:    cfg.Events.BatchSize,
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logger)
		logger.Info().
			Strs("brokers", cfg.Events.Brokers).
			Str("topic", cfg.Events.Topic).
			Msg("kafka event publisher configured")
	} else {
		rt.Publisher = events.NoopPublisher{}
	}

	rt.Store = screening.NewStore(client, screening.Options{
		Journal:   jrnl,
		Publisher: rt.Publisher,
		Emitter:   events.NewEmitter(events.EmitterConfig{ServiceName: events.DefaultServiceName}),
		Metrics:   rt.Metrics,
		Logger:    logger,
	})

	return rt, nil
}

// HealthChecker returns the journal database when one is configured.
func (rt *Runtime) HealthChecker() *database.DB {
	return rt.DB
}

// Close releases the publisher and the database pool.
func (rt *Runtime) Close() {
	if rt.Publisher != nil {
		if err := rt.Publisher.Close(); err != nil {
			rt.logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}
	if rt.DB != nil {
		rt.DB.Close()
	}
}

func (rt *Runtime) openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Journal, error) {
	if strings.ToLower(cfg.Driver) != config.JournalDriverPostgres {
		return journal.NewMemory(), nil
	}

	db, err := database.New(ctx, &cfg.Database, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to journal database: %w", err)
	}
	rt.DB = db
	rt.logger.Info().Msg("journal database connection established")

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, rt.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				rt.logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return journal.NewPostgres(db), nil
}

func tokenSource(cfg config.AuthConfig, httpClient *reviewapi.HTTPClient) reviewapi.TokenSource {
	if strings.ToLower(cfg.Mode) == config.AuthModeSession {
		return reviewapi.NewSessionTokenSource(cfg.SessionURL, cfg.RefreshToken, cfg.ExpirySkew, httpClient)
	}
	return reviewapi.StaticTokenSource(cfg.Token)
}
