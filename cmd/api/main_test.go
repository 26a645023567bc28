package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"judge-evals/internal/app"
	"judge-evals/internal/apperr"
	"judge-evals/internal/config"
	"judge-evals/internal/evaluation"
	"judge-evals/internal/llm"
	"judge-evals/internal/metrics"
	"judge-evals/internal/store"
)

func newTestDeps(st store.Store, summarizer llm.Summarizer) app.Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewManager()
	return app.Deps{
		Config:     config.Config{LLMTimeout: time.Second},
		Log:        log,
		Store:      st,
		Summarizer: summarizer,
		Metrics:    m,
		Service:    evaluation.New(st, log, evaluation.WithMetrics(m), evaluation.WithTimeout(time.Second)),
	}
}

func newSQLiteDeps(t *testing.T, summarizer llm.Summarizer) app.Deps {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return newTestDeps(st, summarizer)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type aggregateResponse struct {
	Evaluations  []store.Evaluation `json:"evaluations"`
	Summary      *string            `json:"summary"`
	SummaryError *string            `json:"summary_error"`
	AverageScore *float64           `json:"average_score"`
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestScenarioSummaryForContestant(t *testing.T) {
	provider := new(llm.MockSummarizer)
	provider.On("Summarize", mock.Anything, "Judge j1 (Score: 80): Solid\nJudge j2 (Score: 90): Excellent").
		Return("Mock Summary", nil).Once()
	h := routes(newSQLiteDeps(t, provider))

	rec := do(t, h, http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c2","judge_id":"j1","score":80,"notes":"Solid"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c2","judge_id":"j2","score":90,"notes":"Excellent"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations?contestant_id=c2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got aggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Evaluations, 2)
	assert.Equal(t, "j1", got.Evaluations[0].JudgeID)
	assert.Equal(t, "j2", got.Evaluations[1].JudgeID)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Mock Summary", *got.Summary)
	assert.Nil(t, got.SummaryError)
	require.NotNil(t, got.AverageScore)
	assert.Equal(t, 85.0, *got.AverageScore)
	provider.AssertExpectations(t)
}

func TestScenarioProviderFailure(t *testing.T) {
	provider := new(llm.MockSummarizer)
	provider.On("Summarize", mock.Anything, mock.Anything).Return("", errors.New("model exploded: token=abc"))
	h := routes(newSQLiteDeps(t, provider))

	rec := do(t, h, http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c_fail","judge_id":"j1","score":50,"notes":"Meh"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations?contestant_id=c_fail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")

	var got aggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Evaluations, 1)
	assert.Nil(t, got.Summary)
	require.NotNil(t, got.SummaryError)
	assert.Equal(t, evaluation.MsgSummaryFailed, *got.SummaryError)
}

func TestEmptyContestantReturnsNulls(t *testing.T) {
	provider := new(llm.MockSummarizer)
	h := routes(newSQLiteDeps(t, provider))

	rec := do(t, h, http.MethodGet, "/api/v1/evaluations?contestant_id=ghost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"evaluations":[],"summary":null,"summary_error":null,"average_score":null}`, rec.Body.String())
	provider.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestMissingContestantParameter(t *testing.T) {
	h := routes(newSQLiteDeps(t, new(llm.MockSummarizer)))
	rec := do(t, h, http.MethodGet, "/api/v1/evaluations", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCRUDLifecycle(t *testing.T) {
	h := routes(newSQLiteDeps(t, new(llm.MockSummarizer)))

	rec := do(t, h, http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c1","judge_id":"j1","score":70,"notes":"Good"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created store.Evaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched store.Evaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	rec = do(t, h, http.MethodPut, "/api/v1/evaluations/"+created.ID.String(), `{"score":95}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated store.Evaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 95, updated.Score)
	assert.Equal(t, "Good", updated.Notes)
	assert.Equal(t, "j1", updated.JudgeID)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	rec = do(t, h, http.MethodDelete, "/api/v1/evaluations/"+created.ID.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Evaluation "+created.ID.String()+" not found", detail(t, rec))

	rec = do(t, h, http.MethodDelete, "/api/v1/evaluations/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h := routes(newSQLiteDeps(t, new(llm.MockSummarizer)))
	id := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"score above range", http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c","judge_id":"j","score":101,"notes":"n"}`},
		{"negative score", http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c","judge_id":"j","score":-1,"notes":"n"}`},
		{"missing notes", http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c","judge_id":"j","score":1}`},
		{"malformed json", http.MethodPost, "/api/v1/evaluations", `{"contestant_id":`},
		{"wrong type", http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c","judge_id":"j","score":"ten","notes":"n"}`},
		{"bad id on get", http.MethodGet, "/api/v1/evaluations/not-a-uuid", ""},
		{"bad id on delete", http.MethodDelete, "/api/v1/evaluations/not-a-uuid", ""},
		{"empty notes on update", http.MethodPut, "/api/v1/evaluations/" + id, `{"notes":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.NotEmpty(t, detail(t, rec))
		})
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	h := routes(newSQLiteDeps(t, new(llm.MockSummarizer)))
	rec := do(t, h, http.MethodPut, "/api/v1/evaluations/"+uuid.NewString(), `{"score":5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreFailureIsSanitized(t *testing.T) {
	st := new(store.MockStore)
	st.On("Create", mock.Anything, mock.Anything).
		Return(store.Evaluation{}, apperr.Store("create", errors.New(`pq: password authentication failed for user "admin"`)))
	st.On("GetByContestant", mock.Anything, "c1").Return(nil, errors.New("connection reset"))
	h := routes(newTestDeps(st, new(llm.MockSummarizer)))

	rec := do(t, h, http.MethodPost, "/api/v1/evaluations", `{"contestant_id":"c1","judge_id":"j1","score":70,"notes":"Good"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Database Error", detail(t, rec))
	assert.NotContains(t, rec.Body.String(), "admin")

	rec = do(t, h, http.MethodGet, "/api/v1/evaluations?contestant_id=c1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Database Error", detail(t, rec))
}

func TestTimeoutMessage(t *testing.T) {
	st := new(store.MockStore)
	st.On("GetByContestant", mock.Anything, "slow").
		Return([]store.Evaluation{{ID: uuid.New(), ContestantID: "slow", JudgeID: "j1", Score: 10, Notes: "n"}}, nil)
	slow := llm.SummarizerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	deps := newTestDeps(st, slow)
	deps.Service = evaluation.New(st, deps.Log, evaluation.WithTimeout(20*time.Millisecond))

	rec := do(t, routes(deps), http.MethodGet, "/api/v1/evaluations?contestant_id=slow", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got aggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.SummaryError)
	assert.Equal(t, evaluation.MsgSummaryTimeout, *got.SummaryError)
	assert.Nil(t, got.Summary)
}

func TestHealthAndMetrics(t *testing.T) {
	h := routes(newSQLiteDeps(t, new(llm.MockSummarizer)))

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`evaluations_http_requests_total{method="GET",route="/health",status="200"} 1`)))
}
