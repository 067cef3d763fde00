// Package dispatcher is the rate-limited, concurrency-bounded consumer of
// the send queue: it couples a token bucket with a semaphore gate around a
// single shared Gateway handle, fanning each send out into its own
// goroutine so the consuming loop is never blocked waiting on the network.
// The shape (fan-out over a task channel, per-item goroutines, context-aware
// shutdown) follows the worker-pool dispatch loop this pipeline's author
// studied in other bulk-mail senders, generalized from a fixed worker count
// to a token-bucket + semaphore pair.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bulksend/bulksend/internal/ratelimit"
	"github.com/bulksend/bulksend/internal/store"
)

// SendItem is one recipient's worth of work pulled off the send queue,
// already joined with its content body by whichever producer built it
// (Scheduler or Ingest).
type SendItem struct {
	RequestID uuid.UUID
	TopicID   uuid.UUID
	From      string
	To        string
	Subject   string
	Body      string
}

// Sender is the Gateway Client's send operation, narrowed to what the
// Dispatcher needs so tests can substitute a fake.
type Sender interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) (string, error)
}

// Dispatcher consumes SendItems and produces store.Outcomes.
type Dispatcher struct {
	sender    Sender
	limiter   *ratelimit.Limiter
	sem       *semaphore.Weighted
	trackBase string
	logger    *slog.Logger
}

// New creates a Dispatcher. maxPerSecond governs both the token bucket rate
// and, at 2x, the semaphore's permit count, matching spec.md's
// "concurrency bound equals twice the rate bound" sizing. trackBase is the
// externally reachable base URL the open-tracking pixel is rooted at.
func New(sender Sender, maxPerSecond int, trackBase string, logger *slog.Logger) *Dispatcher {
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	return &Dispatcher{
		sender:    sender,
		limiter:   ratelimit.New(maxPerSecond),
		sem:       semaphore.NewWeighted(int64(2 * maxPerSecond)),
		trackBase: trackBase,
		logger:    logger,
	}
}

// Run drains in until it is closed or ctx is done, spawning one goroutine
// per item and forwarding outcomes to out (a blocking send: the natural
// back-pressure onto the gateway is semaphore saturation, not a full
// outcome channel, but a blocked post-processor still must not be bypassed).
func (d *Dispatcher) Run(ctx context.Context, in <-chan SendItem, out chan<- store.Outcome) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-in:
			if !ok {
				return nil
			}
			if err := d.limiter.Acquire(ctx); err != nil {
				return ctx.Err()
			}
			if err := d.sem.Acquire(ctx, 1); err != nil {
				return ctx.Err()
			}
			go d.process(ctx, item, out)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, item SendItem, out chan<- store.Outcome) {
	defer d.sem.Release(1)

	body := appendTrackingPixel(item.Body, d.trackBase, item.RequestID)

	messageID, err := d.sender.Send(ctx, item.From, item.To, item.Subject, body)
	outcome := store.Outcome{RequestID: item.RequestID}
	if err != nil {
		d.logger.Warn("gateway send failed", "request_id", item.RequestID, "to", item.To, "error", err)
		outcome.Sent = false
		outcome.Err = err
	} else {
		outcome.Sent = true
		outcome.MessageID = messageID
	}

	select {
	case out <- outcome:
	case <-ctx.Done():
	}
}

func appendTrackingPixel(body, trackBase string, requestID uuid.UUID) string {
	pixel := fmt.Sprintf(`<img src="%s/v1/events/open?request_id=%s" width="1" height="1" alt="" style="display:none" />`,
		trackBase, requestID)
	return body + pixel
}
