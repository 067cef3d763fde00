// Package postprocessor drains the Dispatcher's outcome queue, batching
// per-message results into one bulk Store write per flush rather than one
// write per outcome.
package postprocessor

import (
	"context"
	"log/slog"
	"time"

	"github.com/bulksend/bulksend/internal/store"
)

// BatchSize is the outcome count that triggers an immediate flush.
const BatchSize = 100

// FlushInterval is how often a partial buffer is flushed even if BatchSize
// has not been reached.
const FlushInterval = 500 * time.Millisecond

// PostProcessor accumulates store.Outcomes and periodically flushes them as
// a single bulk update.
type PostProcessor struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a PostProcessor.
func New(s store.Store, logger *slog.Logger) *PostProcessor {
	return &PostProcessor{store: s, logger: logger}
}

// Run drains in until it is closed, racing "an outcome arrived" against
// "the flush timer elapsed" exactly as spec.md describes, and flushes
// whatever remains once in is closed and drained (best-effort on shutdown).
func (p *PostProcessor) Run(ctx context.Context, in <-chan store.Outcome) error {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	buf := make([]store.Outcome, 0, BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background(), buf)
			return ctx.Err()

		case outcome, ok := <-in:
			if !ok {
				p.flush(context.Background(), buf)
				return nil
			}
			buf = append(buf, outcome)
			if len(buf) >= BatchSize {
				buf = p.flushAndReset(ctx, buf)
			}

		case <-ticker.C:
			if len(buf) > 0 {
				buf = p.flushAndReset(ctx, buf)
			}
		}
	}
}

func (p *PostProcessor) flushAndReset(ctx context.Context, buf []store.Outcome) []store.Outcome {
	p.flush(ctx, buf)
	return buf[:0]
}

// flush writes buf to the Store. A failure leaves the affected rows stuck in
// Processed — a known gap (see DESIGN.md) with a compensating sweep rather
// than a retry here, since retrying a failed bulk write inline would block
// the whole pipeline behind one bad batch.
func (p *PostProcessor) flush(ctx context.Context, buf []store.Outcome) {
	if len(buf) == 0 {
		return
	}
	if err := p.store.FinalizeBatch(ctx, buf); err != nil {
		p.logger.Error("finalize batch failed, rows remain processed", "count", len(buf), "error", err)
	}
}
