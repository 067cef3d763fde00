package handler

import (
	"log/slog"
	"net/http"

	"github.com/bulksend/bulksend/internal/ingest"
	"github.com/bulksend/bulksend/internal/store"
)

// Handlers aggregates every HTTP handler wired into the server's route table.
type Handlers struct {
	Messages *MessagesHandler
	Topics   *TopicsHandler
	Events   *EventsHandler
	Health   *HealthHandler
}

// NewHandlers builds the Handlers aggregate from its dependencies.
func NewHandlers(ig *ingest.Ingest, s store.Store, logger *slog.Logger, httpClient *http.Client, pgPinger, redisPinger Pinger) *Handlers {
	return &Handlers{
		Messages: NewMessagesHandler(ig),
		Topics:   NewTopicsHandler(s),
		Events:   NewEventsHandler(s, logger, httpClient),
		Health:   NewHealthHandler(pgPinger, redisPinger),
	}
}
