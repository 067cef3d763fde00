package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of an EmailRequest.
type RequestStatus string

const (
	// RequestStatusCreated is the initial state: ingested, not yet claimed.
	RequestStatusCreated RequestStatus = "created"
	// RequestStatusProcessed means the scheduler claimed the row and handed
	// it to the dispatcher; it is in flight until the post-processor
	// finalizes it as Sent or Failed.
	RequestStatusProcessed RequestStatus = "processed"
	// RequestStatusSent means the gateway accepted the message.
	RequestStatusSent RequestStatus = "sent"
	// RequestStatusFailed means the gateway rejected the message, or the
	// row was demoted by the stale-processed sweep.
	RequestStatusFailed RequestStatus = "failed"
	// RequestStatusStopped means the topic was stopped before the row was
	// claimed.
	RequestStatusStopped RequestStatus = "stopped"
)

// EmailContent is a reusable message body, addressed by one or more
// EmailRequest rows. Content is immutable once inserted.
type EmailContent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Subject   string    `json:"subject" db:"subject"`
	HTMLBody  string    `json:"html_body" db:"html_body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EmailRequest is one recipient's scheduled send of an EmailContent, keyed
// under a topic for later bulk lookup (counts, stop).
type EmailRequest struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	TopicID     uuid.UUID     `json:"topic_id" db:"topic_id"`
	ContentID   uuid.UUID     `json:"content_id" db:"content_id"`
	FromAddress string        `json:"from_address" db:"from_address"`
	ToAddress   string        `json:"to_address" db:"to_address"`
	SendAt      time.Time     `json:"send_at" db:"send_at"`
	Status      RequestStatus `json:"status" db:"status"`
	MessageID   *string       `json:"message_id,omitempty" db:"message_id"`
	Error       *string       `json:"error,omitempty" db:"error"`
	ClaimedAt   *time.Time    `json:"claimed_at,omitempty" db:"claimed_at"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty" db:"finalized_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// ClaimedRequest is an EmailRequest returned by Store.ClaimDue, already
// joined with the subject/body of its EmailContent so a caller (the
// Scheduler) never needs a second round-trip per claimed row to build the
// outbound message.
type ClaimedRequest struct {
	EmailRequest
	Subject string `json:"subject" db:"subject"`
	Body    string `json:"html_body" db:"html_body"`
}

// EmailResult is a provider-reported outcome (open, bounce, complaint,
// delivery) for a sent request, appended by the webhook handler.
type EmailResult struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RequestID uuid.UUID `json:"request_id" db:"request_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Payload   string    `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Result event type constants reported by the provider webhook.
const (
	EventTypeOpen      = "open"
	EventTypeDelivery  = "delivery"
	EventTypeBounce    = "bounce"
	EventTypeComplaint = "complaint"
)

// TopicCounts summarizes both request status counts and result event-kind
// counts for a topic, matching the two mappings Store.CountsByTopic returns.
type TopicCounts struct {
	TopicID      uuid.UUID        `json:"topic_id"`
	Created      int64            `json:"created"`
	Processed    int64            `json:"processed"`
	Sent         int64            `json:"sent"`
	Failed       int64            `json:"failed"`
	Stopped      int64            `json:"stopped"`
	ResultCounts map[string]int64 `json:"result_counts"`
}
