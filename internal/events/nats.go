package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATS publishes and consumes change events over a NATS connection.
type NATS struct {
	log *slog.Logger
	nc  *nats.Conn
}

// NewNATS constructs a thin NATS-based event bus.
func NewNATS(log *slog.Logger, nc *nats.Conn) *NATS {
	return &NATS{log: log, nc: nc}
}

// Connect dials url and wraps the connection.
func Connect(log *slog.Logger, url string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("judge-evals"))
	if err != nil {
		return nil, err
	}
	return NewNATS(log, nc), nil
}

func (b *NATS) Publish(_ context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Type == "" {
		return errors.New("event type required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject(event.Type), body)
}

// Subscribe joins queue group on every evaluation subject and blocks until
// ctx is done.
func (b *NATS) Subscribe(ctx context.Context, group string, handler Handler) error {
	sub, err := b.nc.QueueSubscribe(SubjectPrefix+"*", group, func(msg *nats.Msg) {
		b.handleMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (b *NATS) handleMessage(ctx context.Context, data []byte, handler Handler) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		b.log.Error("failed to decode event", "err", err)
		return
	}
	if err := handler(ctx, event); err != nil {
		b.log.Error("event handler failed", "id", event.ID, "type", event.Type, "err", err)
	}
}

// Close drains pending publishes and closes the connection.
func (b *NATS) Close() error {
	if b.nc == nil {
		return nil
	}
	return b.nc.Drain()
}
