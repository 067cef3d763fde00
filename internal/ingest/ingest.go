// Package ingest is the synchronous entry point for submitting a batch of
// messages: it validates the whole batch before writing anything, persists
// it in one transaction, and offers freshly due rows onto the send queue
// without blocking the caller.
package ingest

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bulksend/bulksend/internal/apperr"
	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/store"
)

// topicNamespace roots the deterministic mapping from a caller-supplied
// topic_id string (spec's group tag, <=255 chars, arbitrary) onto the UUID
// primary key the Store indexes on. Same string always yields the same
// UUID, so GET/DELETE /v1/topics/{id} can recompute it from the path
// param without a separate lookup table.
var topicNamespace = uuid.MustParse("6f1b1c1a-6e9a-4f2a-9a1a-1f1b7c6d9e10")

// TopicUUID deterministically derives the internal topic UUID from a
// caller-supplied topic_id string.
func TopicUUID(topicID string) uuid.UUID {
	return uuid.NewSHA1(topicNamespace, []byte(topicID))
}

// MaxEmailsPerRequest bounds the total recipient count across every item in
// one submit call.
const MaxEmailsPerRequest = 10000

// MaxFieldLen bounds subject, email, and topic_id length.
const MaxFieldLen = 255

// dueEpsilon absorbs clock skew between "scheduled_at omitted" and
// "scheduled_at computed as now": a timestamp within this window of now is
// still treated as due immediately.
const dueEpsilon = 2 * time.Second

// Item is one message group in a submit batch: one subject/body pair fanned
// out to a set of recipients under a topic.
type Item struct {
	TopicID string   `json:"topic_id"`
	Emails  []string `json:"emails"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Request is the full submit payload. ScheduledAt, if present, is a local
// wall-clock string (RFC3339 with or without an offset); empty means "send
// immediately".
type Request struct {
	Messages    []Item `json:"messages"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// Response reports what the batch produced. Errors is a count, not a list:
// per-row failures are never bubbled out of the pipeline (spec.md §7) and a
// caller learns a row's fate via topic stats, not the ingest response.
type Response struct {
	Total      int   `json:"total"`
	Success    int   `json:"success"`
	Errors     int   `json:"errors"`
	DurationMs int64 `json:"duration_ms"`
	Scheduled  bool  `json:"scheduled"`
}

// Ingest validates and persists submit batches, enqueueing newly due rows
// onto the send queue with a non-blocking offer.
type Ingest struct {
	store       store.Store
	fromAddress string
	sendQueue   chan<- dispatcher.SendItem
	logger      *slog.Logger
}

// New creates an Ingest. sendQueue is the Dispatcher's input channel;
// fromAddress is the single configured sender address every outbound
// message is sent from.
func New(s store.Store, fromAddress string, sendQueue chan<- dispatcher.SendItem, logger *slog.Logger) *Ingest {
	return &Ingest{store: s, fromAddress: fromAddress, sendQueue: sendQueue, logger: logger}
}

// Submit validates req in full before writing anything, then persists the
// whole batch in one transaction (deduplicating identical (subject, body)
// pairs across items onto a single EmailContent row) and offers due rows
// onto the send queue.
func (ig *Ingest) Submit(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	total, err := validate(req)
	if err != nil {
		return nil, err
	}

	scheduled := req.ScheduledAt != ""
	sendAt := time.Now().UTC()
	if scheduled {
		parsed, err := parseScheduledAt(req.ScheduledAt, ig.logger)
		if err != nil {
			return nil, apperr.Validationf("scheduled_at: %v", err)
		}
		sendAt = parsed
	}
	due := !scheduled || !sendAt.After(time.Now().UTC().Add(dueEpsilon))

	items := make([]store.BatchItem, len(req.Messages))
	for i, msg := range req.Messages {
		topicID := TopicUUID(msg.TopicID)
		messages := make([]store.BatchMessage, len(msg.Emails))
		for j, email := range msg.Emails {
			messages[j] = store.BatchMessage{TopicID: topicID, ToAddress: email, SendAt: sendAt}
		}
		items[i] = store.BatchItem{Subject: msg.Subject, Body: msg.Body, Messages: messages}
	}

	resp := &Response{Total: total, Scheduled: scheduled}

	_, requestIDs, err := ig.store.InsertBatch(ctx, ig.fromAddress, items)
	if err != nil {
		return nil, apperr.Store("insert batch", err)
	}

	for i, item := range req.Messages {
		ids := requestIDs[i]
		resp.Success += len(ids)

		if !due {
			continue
		}
		topicID := TopicUUID(item.TopicID)
		for j, id := range ids {
			sendItem := dispatcher.SendItem{
				RequestID: id,
				TopicID:   topicID,
				From:      ig.fromAddress,
				To:        item.Emails[j],
				Subject:   item.Subject,
				Body:      item.Body,
			}
			select {
			case ig.sendQueue <- sendItem:
			default:
				// Queue full: the row stays Created and the Scheduler
				// picks it up on its next tick. This is the intended
				// back-pressure path, not an error.
				ig.logger.Warn("send queue full, leaving row for scheduler", "request_id", id)
			}
		}
	}

	resp.Errors = resp.Total - resp.Success
	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

func validate(req Request) (int, error) {
	if len(req.Messages) == 0 {
		return 0, apperr.Validation("messages must contain at least one item")
	}

	total := 0
	for _, item := range req.Messages {
		if item.TopicID == "" || utf8.RuneCountInString(item.TopicID) > MaxFieldLen {
			return 0, apperr.Validation("topic_id must be non-empty and at most 255 characters")
		}
		if item.Subject == "" || utf8.RuneCountInString(item.Subject) > MaxFieldLen {
			return 0, apperr.Validation("subject must be non-empty and at most 255 characters")
		}
		if item.Body == "" {
			return 0, apperr.Validation("body must be non-empty")
		}
		if len(item.Emails) == 0 {
			return 0, apperr.Validation("each item requires at least one recipient")
		}
		for _, email := range item.Emails {
			if email == "" || utf8.RuneCountInString(email) > MaxFieldLen {
				return 0, apperr.Validation("email must be non-empty and at most 255 characters")
			}
		}
		total += len(item.Emails)
	}

	if total > MaxEmailsPerRequest {
		return 0, apperr.Validationf("total recipients %d exceeds MAX_EMAILS_PER_REQUEST=%d", total, MaxEmailsPerRequest)
	}
	return total, nil
}
