package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bulksend/bulksend/internal/ingest"
	"github.com/bulksend/bulksend/internal/model"
	"github.com/bulksend/bulksend/internal/pkg"
	"github.com/bulksend/bulksend/internal/store"
)

// TopicsHandler serves GET/DELETE /v1/topics/{id}.
type TopicsHandler struct {
	store store.Store
}

// NewTopicsHandler creates a TopicsHandler.
func NewTopicsHandler(s store.Store) *TopicsHandler {
	return &TopicsHandler{store: s}
}

type topicStatsResponse struct {
	RequestCounts map[string]int64 `json:"request_counts"`
	ResultCounts  map[string]int64 `json:"result_counts"`
}

// Get handles GET /v1/topics/{id}.
func (h *TopicsHandler) Get(w http.ResponseWriter, r *http.Request) {
	topicID := ingest.TopicUUID(chi.URLParam(r, "id"))

	counts, err := h.store.CountsByTopic(r.Context(), topicID)
	if err != nil {
		pkg.HandleError(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, topicStatsResponse{
		RequestCounts: requestCountsByLabel(counts),
		ResultCounts:  resultCountsByLabel(counts.ResultCounts),
	})
}

// Delete handles DELETE /v1/topics/{id}: cancels every Created row.
func (h *TopicsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	topicID := ingest.TopicUUID(chi.URLParam(r, "id"))

	stopped, err := h.store.StopTopic(r.Context(), topicID)
	if err != nil {
		pkg.HandleError(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]int64{"stopped": stopped})
}

// requestCountsByLabel maps the Store's internal status counts onto the
// capitalized StatusName labels spec.md §6 documents on the wire
// (Created/Processed/Sent/Failed/Stopped), never the lowercase storage
// strings the Store itself uses.
func requestCountsByLabel(c *model.TopicCounts) map[string]int64 {
	return map[string]int64{
		capitalizeLabel(string(model.RequestStatusCreated)):   c.Created,
		capitalizeLabel(string(model.RequestStatusProcessed)): c.Processed,
		capitalizeLabel(string(model.RequestStatusSent)):      c.Sent,
		capitalizeLabel(string(model.RequestStatusFailed)):    c.Failed,
		capitalizeLabel(string(model.RequestStatusStopped)):   c.Stopped,
	}
}

// resultCountsByLabel maps the Store's internal event-kind counts
// (lowercase, e.g. "open", "bounce") onto the capitalized Kind labels
// spec.md §6 documents (Open/Bounce/Complaint/Delivery).
func resultCountsByLabel(raw map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for kind, n := range raw {
		out[capitalizeLabel(kind)] = n
	}
	return out
}

func capitalizeLabel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
