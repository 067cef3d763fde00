package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bulksend/bulksend/internal/store"
)

// StaleSweepHandler processes stale:sweep tasks by demoting Processed
// requests whose claim predates Threshold: the post-processor never heard
// back about them, most likely because the dispatcher process that claimed
// them crashed mid-flight.
type StaleSweepHandler struct {
	store     store.Store
	threshold time.Duration
	logger    *slog.Logger
}

// NewStaleSweepHandler creates a new StaleSweepHandler.
func NewStaleSweepHandler(s store.Store, threshold time.Duration, logger *slog.Logger) *StaleSweepHandler {
	return &StaleSweepHandler{store: s, threshold: threshold, logger: logger}
}

// ProcessTask handles the stale:sweep task.
func (h *StaleSweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	log := h.logger.With("task", TaskStaleSweep)

	demoted, err := h.store.SweepStale(ctx, h.threshold)
	if err != nil {
		log.Error("stale sweep failed", "error", err)
		return fmt.Errorf("stale sweep: %w", err)
	}

	if demoted > 0 {
		log.Warn("demoted stale processed requests", "count", demoted, "threshold", h.threshold)
	} else {
		log.Info("stale sweep found nothing to demote")
	}
	return nil
}
