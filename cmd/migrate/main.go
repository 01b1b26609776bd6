// Package main provides a CLI tool for decision journal migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/review-screening/internal/config"
	"github.com/helixir/review-screening/internal/database"
	"github.com/helixir/review-screening/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type action int

const (
	actionNone action = iota
	actionUp
	actionDown
	actionSteps
	actionVersion
	actionForce
)

func run() error {
	up := flag.Bool("up", false, "Apply all pending journal migrations")
	down := flag.Bool("down", false, "Roll back all journal migrations")
	steps := flag.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := flag.Bool("version", false, "Print the current migration version")
	force := flag.Int("force", -1, "Force set migration version (use to recover from a dirty state)")
	migrationsPath := flag.String("path", "", "Override the migrations directory path")
	flag.Parse()

	act, err := pickAction(*up, *down, *steps, *version, *force)
	if err != nil {
		flag.Usage()
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbCfg := cfg.Journal.Database

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := dbCfg.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &dbCfg, logger)
	if err != nil {
		return fmt.Errorf("connect to journal database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch act {
	case actionUp:
		logger.Info().Str("path", migrationDir).Msg("applying pending migrations")
		err = migrator.Up()
	case actionDown:
		logger.Warn().Msg("rolling back all migrations")
		err = migrator.Down()
	case actionSteps:
		logger.Info().Int("steps", *steps).Msg("running migration steps")
		err = migrator.Steps(*steps)
	case actionForce:
		logger.Warn().Int("version", *force).Msg("forcing migration version")
		err = migrator.Force(*force)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	printVersion(migrator, logger)
	return nil
}

// pickAction returns the single action selected by the flags.
func pickAction(up, down bool, steps int, version bool, force int) (action, error) {
	selected := actionNone
	count := 0
	mark := func(set bool, a action) {
		if set {
			selected = a
			count++
		}
	}
	mark(up, actionUp)
	mark(down, actionDown)
	mark(steps != 0, actionSteps)
	mark(version, actionVersion)
	mark(force >= 0, actionForce)

	switch count {
	case 0:
		return actionNone, fmt.Errorf("no action specified: use one of -up, -down, -steps N, -version, -force V")
	case 1:
		return selected, nil
	default:
		return actionNone, fmt.Errorf("specify only one action at a time")
	}
}

// printVersion logs the current migration version.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Str("table", database.MigrationsTable).
		Msg("current migration version")
}
