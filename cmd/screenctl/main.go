// Package main provides screenctl, a command line client for the review
// screening engine. Each invocation loads the review list, optionally selects
// a review, runs one operation and exits.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/review-screening/internal/app"
	"github.com/helixir/review-screening/internal/config"
	"github.com/helixir/review-screening/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	out     io.Writer
	output  string
	verbose bool

	cfg    *config.Config
	logger zerolog.Logger
}

// newRootCommand builds the command tree writing results to out.
func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "screenctl",
		Short:         "Screen systematic review studies from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.output, "output", "o", formatText, "Output format: text, json, yaml or csv (export only)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log engine activity to stderr")

	rootCmd.AddCommand(
		reviewsCommand(c),
		searchCommand(c),
		studiesCommand(c),
		screenCommand(c),
		decideCommand(c),
		historyCommand(c),
		exportCommand(c),
		prismaCommand(c),
		statsCommand(c),
	)

	return rootCmd
}

// initialize validates global flags and loads configuration.
func (c *cli) initialize() error {
	switch c.output {
	case formatText, formatJSON, formatYAML, formatCSV:
	default:
		return fmt.Errorf("invalid output format %q", c.output)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "screenctl").Logger()

	return nil
}

// open assembles the engine and loads the review list. When reviewID is not
// empty that review is selected as well.
func (c *cli) open(ctx context.Context, reviewID string) (*app.Runtime, error) {
	rt, err := app.New(ctx, c.cfg, app.Options{}, c.logger)
	if err != nil {
		return nil, err
	}
	if _, err := rt.Store.Refresh(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	if reviewID = strings.TrimSpace(reviewID); reviewID != "" {
		if _, err := rt.Store.Select(ctx, reviewID); err != nil {
			rt.Close()
			return nil, fmt.Errorf("select review: %w", err)
		}
	}
	return rt, nil
}

// requireReview registers the --review flag and marks it required.
func requireReview(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "review", "r", "", "Review id")
	_ = cmd.MarkFlagRequired("review")
}
