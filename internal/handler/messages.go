package handler

import (
	"net/http"

	"github.com/bulksend/bulksend/internal/ingest"
	"github.com/bulksend/bulksend/internal/pkg"
)

// MessagesHandler serves POST /v1/messages.
type MessagesHandler struct {
	ingest *ingest.Ingest
}

// NewMessagesHandler creates a MessagesHandler.
func NewMessagesHandler(ig *ingest.Ingest) *MessagesHandler {
	return &MessagesHandler{ingest: ig}
}

type submitMessageItem struct {
	TopicID string   `json:"topic_id"`
	Emails  []string `json:"emails"`
	Subject string   `json:"subject"`
	Content string   `json:"content"`
}

type submitRequest struct {
	Messages    []submitMessageItem `json:"messages"`
	ScheduledAt string               `json:"scheduled_at,omitempty"`
}

// Submit handles POST /v1/messages: validate, persist, and enqueue due rows.
func (h *MessagesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := pkg.DecodeJSON(r, &req); err != nil {
		pkg.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]ingest.Item, len(req.Messages))
	for i, m := range req.Messages {
		items[i] = ingest.Item{
			TopicID: m.TopicID,
			Emails:  m.Emails,
			Subject: m.Subject,
			Body:    m.Content,
		}
	}

	resp, err := h.ingest.Submit(r.Context(), ingest.Request{
		Messages:    items,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		pkg.HandleError(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, resp)
}
