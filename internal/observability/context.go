package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	reviewIDKey  contextKey = "review_id"
	epochKey     contextKey = "epoch"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithReviewScope adds the active review ID and its epoch to the context.
func WithReviewScope(ctx context.Context, reviewID string, epoch uint64) context.Context {
	ctx = context.WithValue(ctx, reviewIDKey, reviewID)
	ctx = context.WithValue(ctx, epochKey, epoch)
	return ctx
}

// ReviewScopeFromContext retrieves the review ID and epoch from context.
// Returns zero values if not present.
func ReviewScopeFromContext(ctx context.Context) (reviewID string, epoch uint64) {
	if v := ctx.Value(reviewIDKey); v != nil {
		if id, ok := v.(string); ok {
			reviewID = id
		}
	}
	if v := ctx.Value(epochKey); v != nil {
		if e, ok := v.(uint64); ok {
			epoch = e
		}
	}
	return reviewID, epoch
}
