package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, in NewEvaluation) (Evaluation, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(Evaluation), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id uuid.UUID) (Evaluation, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Evaluation), args.Bool(1), args.Error(2)
}

func (m *MockStore) GetByContestant(ctx context.Context, contestantID string) ([]Evaluation, error) {
	args := m.Called(ctx, contestantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Evaluation), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id uuid.UUID, patch Patch) (Evaluation, bool, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(Evaluation), args.Bool(1), args.Error(2)
}

func (m *MockStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
