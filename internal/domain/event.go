package domain

import (
	"context"
	"time"
)

// ActivityKind classifies an ActivityEvent.
type ActivityKind string

const (
	ActivitySelection  ActivityKind = "selection"
	ActivityPrediction ActivityKind = "prediction"
	ActivityHistory    ActivityKind = "history"
	ActivityClose      ActivityKind = "close"
)

// ActivityEvent records one applied step of a selection lifecycle. Stale
// results that were discarded never produce an event.
type ActivityEvent struct {
	SessionID   string       `json:"session_id"`
	Kind        ActivityKind `json:"kind"`
	Station     string       `json:"station,omitempty"`
	Location    *Coordinates `json:"location,omitempty"`
	Outcome     string       `json:"outcome,omitempty"` // "success", "error", "no_data"
	Probability *float64     `json:"probability,omitempty"`
	Tier        Tier         `json:"tier,omitempty"`
	Points      int          `json:"points,omitempty"`
	Error       string       `json:"error,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// EventPublisher ships activity events to an external sink.
type EventPublisher interface {
	Publish(ctx context.Context, event ActivityEvent) error
}
