package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flood-risk-dashboard/internal/config"
	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
)

const (
	defaultQueueSize = 1024
	maxBatch         = 100
	flushTimeout     = 5 * time.Second
)

// ErrQueueFull is returned by Publish when the delivery queue has no room.
var ErrQueueFull = errors.New("activity event queue full")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes activity events to a Kafka topic. Publish only enqueues;
// Run delivers queued events in batches so session handlers never wait on
// the broker. It implements domain.EventPublisher.
type Writer struct {
	writer  messageWriter
	queue   chan domain.ActivityEvent
	done    chan struct{}
	started atomic.Bool
	logger  *slog.Logger
}

// NewWriter creates a producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, defaultQueueSize, logger)
}

func newWriter(w messageWriter, queueSize int, logger *slog.Logger) *Writer {
	return &Writer{
		writer: w,
		queue:  make(chan domain.ActivityEvent, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Publish enqueues an event for delivery.
func (w *Writer) Publish(_ context.Context, event domain.ActivityEvent) error {
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// left with a bounded timeout.
func (w *Writer) Run(ctx context.Context) {
	w.started.Store(true)
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			for batch := w.drain(nil); len(batch) > 0; batch = w.drain(nil) {
				w.write(flushCtx, batch)
			}
			cancel()
			return
		case ev := <-w.queue:
			w.write(ctx, w.drain([]domain.ActivityEvent{ev}))
		}
	}
}

// Close waits for Run to finish, if it was started, and closes the producer.
func (w *Writer) Close() error {
	if w.started.Load() {
		<-w.done
	}
	return w.writer.Close()
}

// drain appends queued events to batch without blocking, up to maxBatch.
func (w *Writer) drain(batch []domain.ActivityEvent) []domain.ActivityEvent {
	for len(batch) < maxBatch {
		select {
		case ev := <-w.queue:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (w *Writer) write(ctx context.Context, events []domain.ActivityEvent) {
	msgs := make([]kafkago.Message, 0, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			w.logger.Error("dropping unserializable activity event", "kind", events[i].Kind, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.logger.Error("failed to write activity events", "count", len(msgs), "error", err)
	}
}

// serializeToMessage marshals an ActivityEvent into a Kafka message keyed by
// session so one session's events stay ordered within a partition.
func serializeToMessage(event domain.ActivityEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize activity event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
