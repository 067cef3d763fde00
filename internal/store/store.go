// Package store defines the persistence boundary for the send pipeline.
// Implementations must provide exactly-once semantics for ClaimDue (no two
// callers may claim the same row) and must treat FinalizeBatch as the only
// writer of terminal status (Sent/Failed) for a request.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bulksend/bulksend/internal/model"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("record not found")

// BatchMessage is one recipient row to insert for a BatchItem. TopicID is
// carried per-message rather than per-item, since a single submit call may
// mix topics freely across its items.
type BatchMessage struct {
	TopicID   uuid.UUID
	ToAddress string
	SendAt    time.Time
}

// BatchItem groups recipients that share one (subject, body) pair: the unit
// Ingest builds one per submit-request message. Items passed to the same
// InsertBatch call that carry an identical (subject, body) pair collapse
// onto a single EmailContent row — the spec's intra-batch content dedup.
type BatchItem struct {
	Subject  string
	Body     string
	Messages []BatchMessage
}

// Outcome is what the dispatcher reports back to the post-processor after
// attempting to send a single claimed request.
type Outcome struct {
	RequestID uuid.UUID
	Sent      bool
	MessageID string
	Err       error
}

// Store is the full persistence surface used by the ingest, scheduler,
// dispatcher, and post-processor components.
type Store interface {
	// InsertBatch persists one submit call in a single transaction:
	// distinct (subject, body) pairs across items are deduplicated onto one
	// EmailContent row apiece, and every message in every item becomes one
	// EmailRequest row in status Created referencing its item's content.
	// Returns, per item in input order, the content id it was assigned and
	// the request ids in that item's message order.
	InsertBatch(ctx context.Context, fromAddress string, items []BatchItem) (contentIDs []uuid.UUID, requestIDs [][]uuid.UUID, err error)

	// ClaimDue atomically transitions up to limit Created rows with
	// send_at <= now into Processed and returns them joined with their
	// content's subject/body, in one statement, so callers never need a
	// per-row content lookup. No two concurrent callers (single process or
	// otherwise) ever receive the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ClaimedRequest, error)

	// GetContent fetches a content row by ID. The scheduler does not need
	// it: ClaimDue already returns each claimed row's subject and body.
	GetContent(ctx context.Context, id uuid.UUID) (*model.EmailContent, error)

	// FinalizeBatch applies the post-processor's buffered outcomes as a
	// single bulk UPDATE: Sent rows get message_id, Failed rows get error.
	FinalizeBatch(ctx context.Context, outcomes []Outcome) error

	// StopTopic transitions every Created row under a topic to Stopped,
	// preventing future claims; rows already Processed are unaffected.
	StopTopic(ctx context.Context, topicID uuid.UUID) (int64, error)

	// CountsByTopic reports both the per-status request counts and the
	// per-kind result counts for a topic.
	CountsByTopic(ctx context.Context, topicID uuid.UUID) (*model.TopicCounts, error)

	// SentCount reports the number of requests sent within the last window.
	SentCount(ctx context.Context, window time.Duration) (int64, error)

	// AppendResult records a provider-reported event (open, bounce,
	// complaint, delivery) for a request. Fails with an error wrapping
	// ErrNotFound if requestID does not reference an existing EmailRequest.
	AppendResult(ctx context.Context, requestID uuid.UUID, eventType, payload string) error

	// RequestIDForMessageID resolves a provider message ID back to the
	// internal request ID, used by the results webhook handler to turn a
	// provider notification into an AppendResult call.
	RequestIDForMessageID(ctx context.Context, messageID string) (uuid.UUID, error)

	// SweepStale demotes Processed rows whose claimed_at predates
	// olderThan to Failed, returning the number of rows demoted.
	SweepStale(ctx context.Context, olderThan time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
