package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bulksend/bulksend/internal/model"
	"github.com/bulksend/bulksend/internal/pkg"
	"github.com/bulksend/bulksend/internal/store"
)

// trackingPixelPNG is a 1x1 fully transparent PNG, encoded once at package
// init so every open-tracking hit just writes the same bytes.
var trackingPixelPNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{0, 0, 0, 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encode tracking pixel: " + err.Error())
	}
	return buf.Bytes()
}()

// allowedSubscribeHostSuffix restricts auto-confirmation GETs to AWS SNS
// endpoints, guarding against SSRF via an attacker-controlled SubscribeURL.
const allowedSubscribeHostSuffix = ".amazonaws.com"

// EventsHandler serves the counts/sent, open-tracking, and provider
// results-callback endpoints.
type EventsHandler struct {
	store      store.Store
	logger     *slog.Logger
	httpClient *http.Client
}

// NewEventsHandler creates an EventsHandler. httpClient, if nil, defaults to
// a client with a short timeout for the subscription-confirmation fetch.
func NewEventsHandler(s store.Store, logger *slog.Logger, httpClient *http.Client) *EventsHandler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &EventsHandler{store: s, logger: logger, httpClient: httpClient}
}

// CountsSent handles GET /v1/events/counts/sent?hours=N.
func (h *EventsHandler) CountsSent(w http.ResponseWriter, r *http.Request) {
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		pkg.Error(w, http.StatusBadRequest, "hours must be a positive integer")
		return
	}

	count, err := h.store.SentCount(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		pkg.HandleError(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Open handles GET /v1/events/open?request_id=X: it always returns the
// tracking pixel, even when request_id is missing, malformed, or unknown —
// a broken image must never be the result of a tracking hit.
func (h *EventsHandler) Open(w http.ResponseWriter, r *http.Request) {
	if id, err := uuid.Parse(r.URL.Query().Get("request_id")); err == nil {
		if err := h.store.AppendResult(r.Context(), id, model.EventTypeOpen, ""); err != nil {
			h.logger.Warn("open tracking append_result failed", "request_id", id, "error", err)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trackingPixelPNG)
}

// snsEnvelope is the outer shape common to SNS subscription-confirmation and
// notification payloads.
type snsEnvelope struct {
	Type         string `json:"Type"`
	SubscribeURL string `json:"SubscribeURL"`
	Message      string `json:"Message"`
}

// sesNotification is the inner payload of a Notification envelope's Message
// field, describing one delivery-lifecycle event for a sent message.
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID string `json:"messageId"`
	} `json:"mail"`
}

// Results handles POST /v1/events/results: SNS-style subscription
// confirmations are auto-confirmed, and notifications are resolved to a
// request via the provider message id and appended as an EmailResult.
// Unknown or malformed payloads are logged and answered with 200, since the
// provider retries on anything else and there is nothing the caller can fix.
func (h *EventsHandler) Results(w http.ResponseWriter, r *http.Request) {
	var env snsEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.logger.Warn("results callback: malformed envelope", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch env.Type {
	case "SubscriptionConfirmation":
		h.confirmSubscription(r, env.SubscribeURL)
	case "Notification":
		h.handleNotification(r, env.Message)
	default:
		h.logger.Warn("results callback: unrecognized type", "type", env.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *EventsHandler) confirmSubscription(r *http.Request, subscribeURL string) {
	u, err := url.Parse(subscribeURL)
	if err != nil {
		h.logger.Warn("results callback: invalid SubscribeURL", "error", err)
		return
	}
	if u.Scheme != "https" || !strings.HasSuffix(u.Hostname(), allowedSubscribeHostSuffix) {
		h.logger.Warn("results callback: SubscribeURL host not allow-listed, refusing to fetch", "host", u.Hostname())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		h.logger.Warn("results callback: building confirmation request failed", "error", err)
		return
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Warn("results callback: subscription confirmation fetch failed", "error", err)
		return
	}
	_ = resp.Body.Close()
}

func (h *EventsHandler) handleNotification(r *http.Request, message string) {
	var note sesNotification
	if err := json.Unmarshal([]byte(message), &note); err != nil {
		h.logger.Warn("results callback: malformed notification message", "error", err)
		return
	}
	if note.Mail.MessageID == "" {
		h.logger.Warn("results callback: notification missing message id")
		return
	}

	kind := strings.ToLower(note.NotificationType)
	if kind == "" {
		h.logger.Warn("results callback: notification missing notificationType")
		return
	}

	requestID, err := h.store.RequestIDForMessageID(r.Context(), note.Mail.MessageID)
	if err != nil {
		h.logger.Info("results callback: unknown provider message id, dropping", "message_id", note.Mail.MessageID)
		return
	}

	if err := h.store.AppendResult(r.Context(), requestID, kind, message); err != nil {
		h.logger.Warn("results callback: append_result failed", "request_id", requestID, "error", err)
	}
}
