package llm

import (
	"context"
	"errors"
	"time"
)

// Summarizer turns a block of evaluation text into a short assessment.
// Callers must not pass empty text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a plain function to Summarizer.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Instruction is prepended to the evaluations by every backend.
const Instruction = "Write a short overall assessment of the contestant based on the following judge evaluations. " +
	"Limit it to at most three sentences and do not add introductions or explanations."

// DefaultTimeout bounds one summarization call when no budget is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrEmptyResponse indicates the backend answered without any text.
	ErrEmptyResponse = errors.New("empty response from backend")
	// ErrMalformedResponse indicates the backend body could not be parsed.
	ErrMalformedResponse = errors.New("malformed response from backend")
)
