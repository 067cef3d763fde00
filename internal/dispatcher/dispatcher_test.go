package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	testmock "github.com/bulksend/bulksend/internal/testutil/mock"

	"github.com/bulksend/bulksend/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_Run_Success(t *testing.T) {
	sender := new(testmock.MockGateway)
	sender.On("Send", mock.Anything, "from@example.com", "to@example.com", "Subject", mock.Anything).
		Return("msg-123", nil)

	d := New(sender, 100, "https://example.com", newTestLogger())

	in := make(chan SendItem, 1)
	out := make(chan store.Outcome, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, in, out) }()

	requestID := uuid.New()
	in <- SendItem{
		RequestID: requestID,
		From:      "from@example.com",
		To:        "to@example.com",
		Subject:   "Subject",
		Body:      "<p>hi</p>",
	}

	select {
	case outcome := <-out:
		require.Equal(t, requestID, outcome.RequestID)
		require.True(t, outcome.Sent)
		require.Equal(t, "msg-123", outcome.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	close(in)
	cancel()
	sender.AssertExpectations(t)
}

func TestDispatcher_Run_GatewayFailure(t *testing.T) {
	sender := new(testmock.MockGateway)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("ses rejected"))

	d := New(sender, 100, "https://example.com", newTestLogger())

	in := make(chan SendItem, 1)
	out := make(chan store.Outcome, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = d.Run(ctx, in, out) }()

	requestID := uuid.New()
	in <- SendItem{RequestID: requestID, From: "f@x.com", To: "bad@x.com", Subject: "S", Body: "b"}

	select {
	case outcome := <-out:
		require.Equal(t, requestID, outcome.RequestID)
		require.False(t, outcome.Sent)
		require.Error(t, outcome.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	close(in)
}

// TestDispatcher_Run_ConcurrencyBound covers P5: the number of in-flight
// Gateway.Send calls never exceeds 2x max send per second, even when the
// gateway is slow and a large backlog is queued up at once.
func TestDispatcher_Run_ConcurrencyBound(t *testing.T) {
	const maxPerSecond = 3
	const numItems = 15

	sender := new(testmock.MockGateway)

	var (
		mu          sync.Mutex
		inFlight    int
		maxInFlight int
	)

	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(50 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}).
		Return("msg", nil)

	d := New(sender, maxPerSecond, "https://example.com", newTestLogger())

	in := make(chan SendItem, numItems)
	out := make(chan store.Outcome, numItems)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() { _ = d.Run(ctx, in, out) }()

	for i := 0; i < numItems; i++ {
		in <- SendItem{RequestID: uuid.New(), From: "f@x.com", To: "t@x.com", Subject: "S", Body: "b"}
	}

	for i := 0; i < numItems; i++ {
		select {
		case <-out:
		case <-time.After(9 * time.Second):
			t.Fatal("timed out waiting for outcomes")
		}
	}
	close(in)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, maxInFlight, 2*maxPerSecond,
		"in-flight Gateway.Send calls must never exceed 2x max send per second")
}

func TestAppendTrackingPixel(t *testing.T) {
	id := uuid.New()
	body := appendTrackingPixel("<p>hi</p>", "https://example.com", id)
	require.Contains(t, body, "https://example.com/v1/events/open?request_id="+id.String())
}
