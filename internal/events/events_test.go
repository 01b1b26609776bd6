package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/observability"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewEmitter(t *testing.T) {
	t.Run("uses default service name when empty", func(t *testing.T) {
		emitter := NewEmitter(EmitterConfig{})
		assert.Equal(t, DefaultServiceName, emitter.config.ServiceName)
	})

	t.Run("uses provided service name", func(t *testing.T) {
		emitter := NewEmitter(EmitterConfig{ServiceName: "custom-service"})
		assert.Equal(t, "custom-service", emitter.config.ServiceName)
	})
}

func TestEmitter_Emit(t *testing.T) {
	emitter := NewEmitter(EmitterConfig{ServiceName: "test-service"})

	t.Run("creates event with all fields", func(t *testing.T) {
		ctx := observability.WithRequestID(context.Background(), "req-9")
		payload := domain.StudyScreenedPayload{StudyID: "s1", Status: domain.ScreeningStatusIncluded}

		event, err := emitter.Emit(ctx, domain.EventTypeStudyScreened, "r1", payload)
		require.NoError(t, err)

		assert.NotEmpty(t, event.EventID)
		assert.Equal(t, 1, event.EventVersion)
		assert.Equal(t, "r1", event.ReviewID)
		assert.Equal(t, domain.EventTypeStudyScreened, event.EventType)
		assert.Equal(t, "test-service", event.Source)
		assert.Equal(t, "req-9", event.CorrelationID)

		var decoded domain.StudyScreenedPayload
		require.NoError(t, json.Unmarshal(event.Payload, &decoded))
		assert.Equal(t, payload, decoded)
	})

	t.Run("returns error when review id is missing", func(t *testing.T) {
		_, err := emitter.Emit(context.Background(), domain.EventTypeReviewCreated, "", nil)
		assert.EqualError(t, err, "review_id is required")
	})

	t.Run("returns error when event type is missing", func(t *testing.T) {
		_, err := emitter.Emit(context.Background(), "", "r1", nil)
		assert.EqualError(t, err, "event_type is required")
	})

	t.Run("returns error for unmarshalable payload", func(t *testing.T) {
		_, err := emitter.Emit(context.Background(), domain.EventTypeReviewCreated, "r1", make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marshal payload")
	})
}

func TestKafkaPublisher_Publish(t *testing.T) {
	event, err := NewEmitter(EmitterConfig{}).Emit(context.Background(), domain.EventTypeReviewDeleted, "r1", struct{}{})
	require.NoError(t, err)

	t.Run("writes json value keyed by review id", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "events.test", zerolog.Nop())

		require.NoError(t, p.Publish(context.Background(), event))
		require.Len(t, w.msgs, 1)

		msg := w.msgs[0]
		assert.Equal(t, "r1", string(msg.Key))
		require.Len(t, msg.Headers, 2)
		assert.Equal(t, "event_type", msg.Headers[0].Key)
		assert.Equal(t, domain.EventTypeReviewDeleted, string(msg.Headers[0].Value))

		var decoded domain.ScreeningEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, event.EventID, decoded.EventID)
		assert.Equal(t, event.ReviewID, decoded.ReviewID)
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker down")}
		p := newKafkaPublisher(w, "events.test", zerolog.Nop())

		err := p.Publish(context.Background(), event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
		assert.Contains(t, err.Error(), "events.test")
	})

	t.Run("close closes the writer", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "events.test", zerolog.Nop())
		require.NoError(t, p.Close())
		assert.True(t, w.closed)
	})
}

func TestNewKafkaPublisher_Defaults(t *testing.T) {
	p := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, zerolog.Nop())

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "t", w.Topic)
	assert.Equal(t, 100, w.BatchSize)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &domain.ScreeningEvent{}))
	assert.NoError(t, p.Close())
}
