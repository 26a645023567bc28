package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteCreateAndGet(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.Create(ctx, NewEvaluation{ContestantID: "c1", JudgeID: "j1", Score: 85, Notes: "Good performance"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, found, err := st.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "c1", got.ContestantID)
	assert.Equal(t, "j1", got.JudgeID)
	assert.Equal(t, 85, got.Score)
	assert.Equal(t, "Good performance", got.Notes)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", created.CreatedAt, got.CreatedAt)
	assert.True(t, created.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", created.UpdatedAt, got.UpdatedAt)
}

func TestSQLiteUniqueIDs(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 20; i++ {
		ev, err := st.Create(ctx, NewEvaluation{ContestantID: "c1", JudgeID: "j1", Score: i, Notes: "n"})
		require.NoError(t, err)
		assert.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	st := newTestSQLite(t)

	_, found, err := st.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteGetByContestantKeepsInsertionOrder(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	judges := []string{"j3", "j1", "j2"}
	for _, j := range judges {
		_, err := st.Create(ctx, NewEvaluation{ContestantID: "c2", JudgeID: j, Score: 50, Notes: "ok"})
		require.NoError(t, err)
	}
	_, err := st.Create(ctx, NewEvaluation{ContestantID: "other", JudgeID: "j9", Score: 10, Notes: "x"})
	require.NoError(t, err)

	evs, err := st.GetByContestant(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for i, j := range judges {
		assert.Equal(t, j, evs[i].JudgeID)
	}

	empty, err := st.GetByContestant(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLitePartialUpdate(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.Create(ctx, NewEvaluation{ContestantID: "c3", JudgeID: "j1", Score: 70, Notes: "Okay"})
	require.NoError(t, err)

	updated, found, err := st.Update(ctx, created.ID, Patch{Score: ptr(75)})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 75, updated.Score)
	assert.Equal(t, "Okay", updated.Notes)
	assert.Equal(t, "c3", updated.ContestantID)
	assert.Equal(t, "j1", updated.JudgeID)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	again, _, err := st.Update(ctx, created.ID, Patch{Notes: ptr("Better")})
	require.NoError(t, err)
	assert.Equal(t, 75, again.Score)
	assert.Equal(t, "Better", again.Notes)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	got, _, err := st.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.Score)
	assert.Equal(t, "Better", got.Notes)
}

func TestSQLiteUpdateMovesContestant(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.Create(ctx, NewEvaluation{ContestantID: "c1", JudgeID: "j1", Score: 70, Notes: "Okay"})
	require.NoError(t, err)
	_, _, err = st.Update(ctx, created.ID, Patch{ContestantID: ptr("c9")})
	require.NoError(t, err)

	old, err := st.GetByContestant(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, old)
	moved, err := st.GetByContestant(ctx, "c9")
	require.NoError(t, err)
	assert.Len(t, moved, 1)
}

func TestSQLiteUpdateMissing(t *testing.T) {
	st := newTestSQLite(t)

	_, found, err := st.Update(context.Background(), uuid.New(), Patch{Score: ptr(1)})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteDelete(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.Create(ctx, NewEvaluation{ContestantID: "c4", JudgeID: "j1", Score: 60, Notes: "Pass"})
	require.NoError(t, err)

	deleted, err := st.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := st.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err = st.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteRejectsOutOfRangeScore(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.Create(context.Background(), NewEvaluation{ContestantID: "c1", JudgeID: "j1", Score: 101, Notes: "n"})
	assert.Error(t, err)
}
