package dashboard

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

// eventSink stamps and forwards activity events for one session. A nil
// publisher disables it.
type eventSink struct {
	publisher domain.EventPublisher
	sessionID string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func (s *eventSink) emit(ctx context.Context, ev domain.ActivityEvent) {
	if s == nil || s.publisher == nil {
		return
	}
	ev.SessionID = s.sessionID
	ev.OccurredAt = domain.Now()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.metrics.EventPublishFails.Inc()
		s.logger.Warn("failed to publish activity event", "kind", ev.Kind, "error", err)
		return
	}
	s.metrics.EventsPublished.Inc()
}

func locationOf(s domain.Station) *domain.Coordinates {
	if at, ok := s.Coordinates(); ok {
		return &at
	}
	return nil
}
