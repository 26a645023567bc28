// Package evaluation orchestrates the evaluation store, change events and the
// pluggable summarization backends.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"judge-evals/internal/apperr"
	"judge-evals/internal/events"
	"judge-evals/internal/llm"
	"judge-evals/internal/metrics"
	"judge-evals/internal/store"
)

// Messages reported in Summary.SummaryError. Provider error text never
// reaches the caller.
const (
	MsgSummaryTimeout = "LLM generation timed out"
	MsgSummaryFailed  = "LLM generation failed"
)

// Summary is the aggregate view of one contestant. When Evaluations is
// non-empty exactly one of Summary and SummaryError is set; both are nil
// otherwise.
type Summary struct {
	Evaluations  []store.Evaluation `json:"evaluations"`
	Summary      *string            `json:"summary"`
	SummaryError *string            `json:"summary_error"`
	AverageScore *float64           `json:"average_score"`
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher emits change events after successful writes.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics records summarization outcomes.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds each summarization call. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service is the aggregation service.
type Service struct {
	store    store.Store
	log      *slog.Logger
	events   events.Publisher
	metrics  *metrics.Manager
	timeout  time.Duration
	validate *validator.Validate
}

func New(st store.Store, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		log:      log,
		events:   events.NoOp{},
		timeout:  llm.DefaultTimeout,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and persists a new record.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Evaluation, error) {
	if err := s.validate.Struct(in); err != nil {
		return store.Evaluation{}, validationError(err)
	}
	ev, err := s.store.Create(ctx, store.NewEvaluation{
		ContestantID: in.ContestantID,
		JudgeID:      in.JudgeID,
		Score:        *in.Score,
		Notes:        in.Notes,
	})
	if err != nil {
		return store.Evaluation{}, storeErr("create", err)
	}
	s.publish(ctx, events.TypeCreated, ev)
	return ev, nil
}

// Get returns the record with id or a not-found error.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Evaluation, error) {
	ev, found, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Evaluation{}, storeErr("get", err)
	}
	if !found {
		return store.Evaluation{}, apperr.NotFound(id)
	}
	return ev, nil
}

// Update applies the present fields of in to the record with id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (store.Evaluation, error) {
	if err := s.validate.Struct(in); err != nil {
		return store.Evaluation{}, validationError(err)
	}
	ev, found, err := s.store.Update(ctx, id, store.Patch{
		ContestantID: in.ContestantID,
		JudgeID:      in.JudgeID,
		Score:        in.Score,
		Notes:        in.Notes,
	})
	if err != nil {
		return store.Evaluation{}, storeErr("update", err)
	}
	if !found {
		return store.Evaluation{}, apperr.NotFound(id)
	}
	s.publish(ctx, events.TypeUpdated, ev)
	return ev, nil
}

// Delete removes the record with id or reports it as not found.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	// Read first so the deleted event can name the contestant.
	ev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return storeErr("delete", err)
	}
	if !deleted {
		return apperr.NotFound(id)
	}
	s.publish(ctx, events.TypeDeleted, ev)
	return nil
}

// GetEvaluationsForContestant returns every record for contestantID in store
// order together with a generated summary. Summarization failures are folded
// into SummaryError; only store failures are returned as errors.
func (s *Service) GetEvaluationsForContestant(ctx context.Context, contestantID string, provider llm.Summarizer) (Summary, error) {
	if strings.TrimSpace(contestantID) == "" {
		return Summary{}, apperr.Invalid("contestant_id is required", nil)
	}
	evals, err := s.store.GetByContestant(ctx, contestantID)
	if err != nil {
		return Summary{}, storeErr("get by contestant", err)
	}
	if len(evals) == 0 {
		s.metrics.ObserveSummary(metrics.OutcomeSkipped, 0)
		return Summary{Evaluations: []store.Evaluation{}}, nil
	}

	out := Summary{Evaluations: evals, AverageScore: averageScore(evals)}

	start := time.Now()
	text, err := s.summarize(ctx, provider, buildPrompt(evals))
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.ObserveSummary(metrics.OutcomeSuccess, elapsed)
		text = strings.TrimSpace(text)
		out.Summary = &text
	case apperr.Is(err, apperr.KindTimeout):
		s.metrics.ObserveSummary(metrics.OutcomeTimeout, elapsed)
		s.log.Warn("summarization timed out", "contestant_id", contestantID, "timeout", s.timeout, "err", err)
		msg := MsgSummaryTimeout
		out.SummaryError = &msg
	default:
		s.metrics.ObserveSummary(metrics.OutcomeError, elapsed)
		s.log.Error("summarization failed", "contestant_id", contestantID, "kind", apperr.KindOf(err).String(), "err", err)
		msg := MsgSummaryFailed
		out.SummaryError = &msg
	}
	return out, nil
}

type summarizeResult struct {
	text string
	err  error
}

// summarize runs provider under the service deadline. The call runs on its own
// goroutine so a backend that ignores cancellation is abandoned when the
// deadline passes; its late result is dropped.
func (s *Service) summarize(ctx context.Context, provider llm.Summarizer, text string) (string, error) {
	if provider == nil {
		return "", apperr.Config("no summarization provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan summarizeResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- summarizeResult{err: fmt.Errorf("summarizer panic: %v", rec)}
			}
		}()
		summary, err := provider.Summarize(ctx, text)
		done <- summarizeResult{text: summary, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.Timeout("summarizer", ctx.Err())
		}
		return "", apperr.Provider("summarizer", ctx.Err())
	}
}

// buildPrompt renders one line per record in the given order.
func buildPrompt(evals []store.Evaluation) string {
	var b strings.Builder
	for i, ev := range evals {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Judge %s (Score: %d): %s", ev.JudgeID, ev.Score, ev.Notes)
	}
	return b.String()
}

// averageScore is the mean score rounded to two decimal places.
func averageScore(evals []store.Evaluation) *float64 {
	if len(evals) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, ev := range evals {
		sum = sum.Add(decimal.NewFromInt(int64(ev.Score)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(evals)))).Round(2).InexactFloat64()
	return &avg
}

func (s *Service) publish(ctx context.Context, t events.Type, ev store.Evaluation) {
	events.PublishWithRetry(context.WithoutCancel(ctx), s.log, s.events, events.New(t, ev))
}

// storeErr classifies an unclassified store error as a store failure.
func storeErr(op string, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Store(op, err)
	}
	return err
}
