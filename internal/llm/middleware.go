package llm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"judge-evals/internal/apperr"
)

// WithRateLimit paces calls through a token bucket. A wait that cannot finish
// before the call deadline counts as a timeout.
func WithRateLimit(next Summarizer, limiter *rate.Limiter) Summarizer {
	return SummarizerFunc(func(ctx context.Context, text string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return "", apperr.Provider("rate limiter", err)
			}
			if _, hasDeadline := ctx.Deadline(); hasDeadline {
				return "", apperr.Timeout("rate limiter", err)
			}
			return "", apperr.Provider("rate limiter", fmt.Errorf("rate limit: %w", err))
		}
		return next.Summarize(ctx, text)
	})
}

// WithTracing wraps each call in an OpenTelemetry span.
func WithTracing(next Summarizer, provider string) Summarizer {
	tracer := otel.Tracer("judge-evals/llm")
	return SummarizerFunc(func(ctx context.Context, text string) (string, error) {
		ctx, span := tracer.Start(ctx, "Summarize", trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("llm.input.length", len(text)),
		))
		defer span.End()

		summary, err := next.Summarize(ctx, text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.KindOf(err).String())
			return "", err
		}
		span.SetAttributes(attribute.Int("llm.output.length", len(summary)))
		return summary, nil
	})
}
