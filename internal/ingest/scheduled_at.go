package ingest

import (
	"fmt"
	"log/slog"
	"time"
)

// naiveLayouts are tried, in order, against a scheduled_at string that
// carries no UTC offset — a "naive" timestamp, interpreted in the server's
// local zone per spec.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseScheduledAt parses raw as an offset-aware RFC3339 timestamp first; if
// that fails, it retries as a naive local-time wall clock and logs a
// warning, since a caller who omitted the offset may not have intended
// server-local interpretation.
func parseScheduledAt(raw string, logger *slog.Logger) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			logger.Warn("scheduled_at parsed as naive local time, no UTC offset given", "raw", raw)
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized scheduled_at format %q", raw)
}
