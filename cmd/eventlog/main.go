package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"judge-evals/internal/app"
	"judge-evals/internal/events"
)

const queueGroup = "eventlog"

func main() {
	cfg, log, err := app.Load()
	if err != nil {
		slog.Default().Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if cfg.QueueURL == "" {
		log.Error("QUEUE_URL is required")
		os.Exit(1)
	}
	bus, err := events.Connect(log, cfg.QueueURL)
	if err != nil {
		log.Error("failed to connect to NATS", "err", err)
		os.Exit(1)
	}
	defer func() { _ = bus.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	log.Info("eventlog subscribing", "subject", events.SubjectPrefix+"*", "group", queueGroup)
	g.Go(func() error {
		return bus.Subscribe(ctx, queueGroup, logEvent(log))
	})

	if err := g.Wait(); err != nil {
		log.Error("eventlog stopped", "err", err)
	}
}

func logEvent(log *slog.Logger) events.Handler {
	return func(_ context.Context, ev events.Event) error {
		log.Info("evaluation event",
			"id", ev.ID,
			"type", ev.Type,
			"evaluation_id", ev.EvaluationID,
			"contestant_id", ev.ContestantID,
			"occurred_at", ev.OccurredAt,
		)
		return nil
	}
}
