// Package scheduler periodically claims due EmailRequests from the Store
// and hands them to the Dispatcher, the only producer besides Ingest onto
// the send queue.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/model"
	"github.com/bulksend/bulksend/internal/observability"
	"github.com/bulksend/bulksend/internal/store"
)

// BatchSize is the maximum number of rows claimed per tick.
const BatchSize = 1000

// IdleDelay is how long the Scheduler waits after an empty claim before
// polling again.
const IdleDelay = 10 * time.Second

// ErrorBackoff is how long the Scheduler waits after a Store error before
// retrying.
const ErrorBackoff = 5 * time.Second

// Scheduler polls the Store for due rows and pushes them onto the send
// queue with a blocking send, so it naturally slows down when the
// Dispatcher is saturated.
type Scheduler struct {
	store   store.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Scheduler.
func New(s store.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: s, logger: logger}
}

// WithMetrics attaches a Metrics instance whose ClaimBatchSize histogram
// observes each tick's claim size. Optional: a Scheduler without metrics
// attached runs identically, just unobserved.
func (s *Scheduler) WithMetrics(m *observability.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Run loops until ctx is cancelled, claiming due rows and offering them to
// out. It starts immediately (no initial delay).
func (s *Scheduler) Run(ctx context.Context, out chan<- dispatcher.SendItem) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		claimed, err := s.store.ClaimDue(ctx, time.Now().UTC(), BatchSize)
		if s.metrics != nil && err == nil {
			s.metrics.ClaimBatchSize.Observe(float64(len(claimed)))
		}
		if err != nil {
			s.logger.Error("claim due failed", "error", err)
			if !s.sleep(ctx, ErrorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if len(claimed) == 0 {
			if !s.sleep(ctx, IdleDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, req := range claimed {
			select {
			case out <- sendItemFor(req):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// A full batch means there may be more backlog: loop immediately
		// instead of idling.
		if len(claimed) < BatchSize {
			if !s.sleep(ctx, IdleDelay) {
				return ctx.Err()
			}
		}
	}
}

func sendItemFor(req model.ClaimedRequest) dispatcher.SendItem {
	return dispatcher.SendItem{
		RequestID: req.ID,
		TopicID:   req.TopicID,
		From:      req.FromAddress,
		To:        req.ToAddress,
		Subject:   req.Subject,
		Body:      req.Body,
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
