package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/model"
	testmock "github.com/bulksend/bulksend/internal/testutil/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_Run_ClaimsAndForwards(t *testing.T) {
	s := new(testmock.MockStore)

	requestID := uuid.New()
	topicID := uuid.New()
	contentID := uuid.New()

	claimed := []model.ClaimedRequest{
		{
			EmailRequest: model.EmailRequest{
				ID:          requestID,
				TopicID:     topicID,
				ContentID:   contentID,
				FromAddress: "from@example.com",
				ToAddress:   "to@example.com",
			},
			Subject: "hello",
			Body:    "<p>hi</p>",
		},
	}

	s.On("ClaimDue", mock.Anything, mock.Anything, BatchSize).Return(claimed, nil).Once()
	s.On("ClaimDue", mock.Anything, mock.Anything, BatchSize).Return([]model.ClaimedRequest{}, nil)

	sched := New(s, newTestLogger())

	out := make(chan dispatcher.SendItem, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = sched.Run(ctx, out) }()

	select {
	case item := <-out:
		require.Equal(t, requestID, item.RequestID)
		require.Equal(t, topicID, item.TopicID)
		require.Equal(t, "from@example.com", item.From)
		require.Equal(t, "to@example.com", item.To)
		require.Equal(t, "hello", item.Subject)
		require.Equal(t, "<p>hi</p>", item.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler to forward claimed request")
	}
}

// TestScheduler_Run_StopsPromptlyOnCancellation covers the Scheduler's
// shutdown contract: cancelling the context returns from Run quickly rather
// than finishing a full IdleDelay or ErrorBackoff wait.
func TestScheduler_Run_StopsPromptlyOnCancellation(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("ClaimDue", mock.Anything, mock.Anything, BatchSize).Return([]model.ClaimedRequest{}, nil)

	sched := New(s, newTestLogger())
	out := make(chan dispatcher.SendItem, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx, out) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop promptly after cancellation")
	}
}

// TestScheduler_Run_CancellationSafety covers P7: a row stopped via
// Store.StopTopic while still Created is never claimed and handed to the
// Dispatcher by the Scheduler, since ClaimDue only ever selects rows whose
// status is still Created.
func TestScheduler_Run_CancellationSafety(t *testing.T) {
	s := new(testmock.MockStore)
	topicID := uuid.New()

	s.On("StopTopic", mock.Anything, topicID).Return(int64(1), nil).Once()
	stopped, err := s.StopTopic(context.Background(), topicID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stopped)

	// Once stopped, the Store's ClaimDue contract (status='created' only)
	// means a row belonging to that topic is never among the claimed set:
	// the fake store mimics that by always returning empty here.
	s.On("ClaimDue", mock.Anything, mock.Anything, BatchSize).Return([]model.ClaimedRequest{}, nil)

	sched := New(s, newTestLogger())
	out := make(chan dispatcher.SendItem, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = sched.Run(ctx, out) }()

	select {
	case item := <-out:
		t.Fatalf("expected no item forwarded for a stopped topic, got %+v", item)
	case <-time.After(300 * time.Millisecond):
	}
}
