package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bulksend/bulksend/internal/apperr"
	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/store"
	testmock "github.com/bulksend/bulksend/internal/testutil/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmit_RejectsTooManyRecipients(t *testing.T) {
	s := new(testmock.MockStore)
	ig := New(s, "from@example.com", make(chan dispatcher.SendItem, 1), newTestLogger())

	emails := make([]string, MaxEmailsPerRequest+1)
	for i := range emails {
		emails[i] = "x@example.com"
	}

	_, err := ig.Submit(context.Background(), Request{
		Messages: []Item{{TopicID: "t1", Emails: emails, Subject: "s", Body: "b"}},
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSubmit_RejectsEmptySubject(t *testing.T) {
	s := new(testmock.MockStore)
	ig := New(s, "from@example.com", make(chan dispatcher.SendItem, 1), newTestLogger())

	_, err := ig.Submit(context.Background(), Request{
		Messages: []Item{{TopicID: "t1", Emails: []string{"a@x.com"}, Subject: "", Body: "b"}},
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSubmit_PersistsAndEnqueuesImmediateSend(t *testing.T) {
	s := new(testmock.MockStore)
	contentID := uuid.New()
	requestID := uuid.New()
	s.On("InsertBatch", mock.Anything, "from@example.com", mock.MatchedBy(func(items []store.BatchItem) bool {
		return len(items) == 1 && items[0].Subject == "hello" && items[0].Body == "<p>hi</p>"
	})).Return([]uuid.UUID{contentID}, [][]uuid.UUID{{requestID}}, nil)

	out := make(chan dispatcher.SendItem, 1)
	ig := New(s, "from@example.com", out, newTestLogger())

	resp, err := ig.Submit(context.Background(), Request{
		Messages: []Item{{TopicID: "t1", Emails: []string{"a@x.com"}, Subject: "hello", Body: "<p>hi</p>"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, 1, resp.Success)
	require.False(t, resp.Scheduled)

	select {
	case item := <-out:
		require.Equal(t, requestID, item.RequestID)
		require.Equal(t, "a@x.com", item.To)
	default:
		t.Fatal("expected item enqueued onto send queue")
	}
}

func TestSubmit_FutureScheduleDoesNotEnqueue(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("InsertBatch", mock.Anything, "from@example.com", mock.Anything).
		Return([]uuid.UUID{uuid.New()}, [][]uuid.UUID{{uuid.New()}}, nil)

	out := make(chan dispatcher.SendItem, 1)
	ig := New(s, "from@example.com", out, newTestLogger())

	resp, err := ig.Submit(context.Background(), Request{
		Messages:    []Item{{TopicID: "t1", Emails: []string{"a@x.com"}, Subject: "hello", Body: "<p>hi</p>"}},
		ScheduledAt: "2099-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.True(t, resp.Scheduled)

	select {
	case item := <-out:
		t.Fatalf("expected no enqueue for future schedule, got %+v", item)
	default:
	}
}

// TestSubmit_PassesDuplicateContentThroughToStore covers Ingest's half of
// P6: two items in the same submit call sharing an identical (subject, body)
// pair are handed to the store as two BatchItems; collapsing them onto one
// EmailContent row is the store's InsertBatch's job, not Ingest's. Here we
// only assert Ingest passes the duplicate pair through unchanged, rather
// than deduplicating (or merging) at this layer.
func TestSubmit_PassesDuplicateContentThroughToStore(t *testing.T) {
	s := new(testmock.MockStore)
	var captured []store.BatchItem
	s.On("InsertBatch", mock.Anything, "from@example.com", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]store.BatchItem)
		}).
		Return([]uuid.UUID{uuid.New(), uuid.New()}, [][]uuid.UUID{{uuid.New()}, {uuid.New()}}, nil)

	out := make(chan dispatcher.SendItem, 4)
	ig := New(s, "from@example.com", out, newTestLogger())

	_, err := ig.Submit(context.Background(), Request{
		Messages: []Item{
			{TopicID: "t1", Emails: []string{"a@x.com"}, Subject: "hello", Body: "<p>hi</p>"},
			{TopicID: "t2", Emails: []string{"b@x.com"}, Subject: "hello", Body: "<p>hi</p>"},
		},
	})
	require.NoError(t, err)
	require.Len(t, captured, 2)
	require.Equal(t, captured[0].Subject, captured[1].Subject)
	require.Equal(t, captured[0].Body, captured[1].Body)
}

func TestTopicUUID_Deterministic(t *testing.T) {
	require.Equal(t, TopicUUID("same-tag"), TopicUUID("same-tag"))
	require.NotEqual(t, TopicUUID("a"), TopicUUID("b"))
}
