// Package observability holds the logging, metrics and context plumbing
// shared by the screening engine, its backend client and the console server.
//
// Loggers are zerolog loggers built from LoggingConfig. Engine code narrows
// them with the With* helpers so every entry about a review carries the same
// fields:
//
//	logger := observability.NewLogger(observability.LoggingConfig{Level: "info", Format: "json"})
//	logger = observability.WithReviewContext(logger, reviewID, epoch)
//	logger.Info().Int("pending", n).Msg("review selected")
//
// Metrics are Prometheus collectors registered under one namespace. Every
// recorder method is safe to call on a nil *Metrics, so components accept an
// optional metrics value without branching.
//
// Field names used across the module:
//
//   - service: always "review-screening"
//   - request_id: console request identifier, forwarded to the backend
//   - review_id, epoch: active review and the epoch work was dispatched under
//   - study_id: study being decided
//   - query, databases: search parameters
//   - operation, backend_request_id: backend call being logged
package observability
