package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "review-screening"

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is json, or console/pretty for human readable output.
	Format string

	// Output is stdout, stderr or a file path opened for appending.
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the timestamp layout; RFC 3339 when empty.
	TimeFormat string
}

// NewLogger creates a logger from configuration. An output file that cannot
// be opened falls back to stderr and the failure is logged there.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	out, err := openOutput(cfg.Output)
	logger := newLogger(out, cfg)
	if err != nil {
		logger.Warn().Err(err).Str("output", cfg.Output).Msg("log output unavailable, using stderr")
	}
	return logger
}

func newLogger(out io.Writer, cfg LoggingConfig) zerolog.Logger {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(out).With().Timestamp().Str("service", ServiceName)
	if cfg.AddSource {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(ParseLevel(cfg.Level))
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// ParseLevel converts a level name to a zerolog.Level. "warning" is accepted
// as an alias; unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithReviewContext adds the active review fields to a logger.
func WithReviewContext(logger zerolog.Logger, reviewID string, epoch uint64) zerolog.Logger {
	return logger.With().
		Str("review_id", reviewID).
		Uint64("epoch", epoch).
		Logger()
}

// WithSearchContext adds search-related fields to a logger.
func WithSearchContext(logger zerolog.Logger, query string, databases []string) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Strs("databases", databases).
		Logger()
}

// WithStudyContext adds the study id to a logger.
func WithStudyContext(logger zerolog.Logger, studyID string) zerolog.Logger {
	return logger.With().Str("study_id", studyID).Logger()
}

// WithBackendContext adds backend request fields to a logger.
func WithBackendContext(logger zerolog.Logger, operation, requestID string) zerolog.Logger {
	return logger.With().
		Str("operation", operation).
		Str("backend_request_id", requestID).
		Logger()
}
