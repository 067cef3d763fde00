package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	testmock "github.com/bulksend/bulksend/internal/testutil/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStaleSweepHandler_ProcessTask_DemotesStaleRows covers spec.md §9's
// compensating mitigation: the periodic sweep task demotes whatever
// Store.SweepStale reports without touching asynq or Redis directly, since
// ProcessTask's only collaborator is the Store.
func TestStaleSweepHandler_ProcessTask_DemotesStaleRows(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("SweepStale", mock.Anything, 30*time.Minute).Return(int64(3), nil)

	h := NewStaleSweepHandler(s, 30*time.Minute, newTestLogger())

	err := h.ProcessTask(context.Background(), NewStaleSweepTask())
	require.NoError(t, err)
	s.AssertExpectations(t)
}

// TestStaleSweepHandler_ProcessTask_NothingToDemote covers the idle path:
// an empty sweep is not an error.
func TestStaleSweepHandler_ProcessTask_NothingToDemote(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("SweepStale", mock.Anything, 30*time.Minute).Return(int64(0), nil)

	h := NewStaleSweepHandler(s, 30*time.Minute, newTestLogger())

	err := h.ProcessTask(context.Background(), NewStaleSweepTask())
	require.NoError(t, err)
}

// TestStaleSweepHandler_ProcessTask_StoreErrorPropagates covers the error
// path: a Store failure is wrapped and returned so asynq's retry policy
// (MaxRetry(1) on the task itself) can act on it, rather than being
// swallowed.
func TestStaleSweepHandler_ProcessTask_StoreErrorPropagates(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("SweepStale", mock.Anything, 30*time.Minute).Return(int64(0), errors.New("connection reset"))

	h := NewStaleSweepHandler(s, 30*time.Minute, newTestLogger())

	err := h.ProcessTask(context.Background(), NewStaleSweepTask())
	require.Error(t, err)
}
