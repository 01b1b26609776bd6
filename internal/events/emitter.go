package events

import (
	"context"
	"fmt"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/observability"
)

// DefaultServiceName is the event source when none is configured.
const DefaultServiceName = "review-screening"

// Publisher delivers screening events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.ScreeningEvent) error
	Close() error
}

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
}

// Emitter creates screening events enriched with service context.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	return &Emitter{config: config}
}

// Emit builds an event for a review. The request id carried by ctx, if any,
// becomes the correlation id.
func (e *Emitter) Emit(ctx context.Context, eventType, reviewID string, payload interface{}) (*domain.ScreeningEvent, error) {
	if reviewID == "" {
		return nil, fmt.Errorf("review_id is required")
	}
	if eventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	event, err := domain.NewScreeningEvent(eventType, reviewID, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	event.Source = e.config.ServiceName
	event.CorrelationID = observability.RequestIDFromContext(ctx)
	return event, nil
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *domain.ScreeningEvent) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
