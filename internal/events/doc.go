// Package events publishes screening lifecycle events.
//
// # Overview
//
// The screening store reports each committed state change as a
// domain.ScreeningEvent. Publishing is best effort: a failed publish is
// logged and counted but never undoes the change that caused it.
//
// # Components
//
//   - Emitter: builds events enriched with the service name and correlation id
//   - KafkaPublisher: writes events to a Kafka topic keyed by review id
//   - NoopPublisher: discards events when publishing is disabled
//
// # Event Types
//
//   - review.created: a review was created and became active
//   - review.selected: a review became active and its studies were loaded
//   - review.deleted: a review was removed
//   - review.search_completed: search results were merged into the registry
//   - review.study_screened: a screening decision was committed
//   - review.screening_completed: the pending queue of a review emptied
//
// # Usage
//
//	publisher := events.NewKafkaPublisher(events.KafkaConfig{
//	    Brokers: cfg.Events.Brokers,
//	    Topic:   cfg.Events.Topic,
//	}, logger)
//	defer publisher.Close()
//
//	emitter := events.NewEmitter(events.EmitterConfig{ServiceName: "review-screening"})
//	event, err := emitter.Emit(ctx, domain.EventTypeReviewCreated, reviewID, payload)
//	if err == nil {
//	    err = publisher.Publish(ctx, event)
//	}
package events
