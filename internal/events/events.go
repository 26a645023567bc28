package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"judge-evals/internal/retry"
	"judge-evals/internal/store"
)

// Type enumerates evaluation change kinds.
type Type string

const (
	TypeCreated Type = "created"
	TypeUpdated Type = "updated"
	TypeDeleted Type = "deleted"
)

// SubjectPrefix is the NATS subject namespace for change events.
const SubjectPrefix = "evaluations."

// Event is published after a write to the store succeeded.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         Type      `json:"type"`
	EvaluationID uuid.UUID `json:"evaluation_id"`
	ContestantID string    `json:"contestant_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// New builds an event for the given record.
func New(t Type, ev store.Evaluation) Event {
	return Event{
		ID:           uuid.New(),
		Type:         t,
		EvaluationID: ev.ID,
		ContestantID: ev.ContestantID,
		OccurredAt:   time.Now().UTC(),
	}
}

// Subject returns the subject an event of type t is published on.
func Subject(t Type) string {
	return SubjectPrefix + string(t)
}

type Handler func(context.Context, Event) error

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber consumes change events until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, group string, handler Handler) error
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) Publish(context.Context, Event) error { return nil }

const (
	publishAttempts = 3
	publishBase     = 200 * time.Millisecond
)

// PublishWithRetry attempts to publish with retries and exponential backoff.
// A final failure is logged and swallowed: the write it describes already
// happened.
func PublishWithRetry(ctx context.Context, log *slog.Logger, p Publisher, event Event) {
	err := retry.Do(ctx, publishAttempts, publishBase, func(ctx context.Context) error {
		return p.Publish(ctx, event)
	})
	if err != nil {
		log.Warn("failed to publish evaluation event",
			"event_id", event.ID,
			"type", event.Type,
			"evaluation_id", event.EvaluationID,
			"err", err,
		)
	}
}
