package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/ingest"
	"github.com/bulksend/bulksend/internal/testutil"
	testmock "github.com/bulksend/bulksend/internal/testutil/mock"
)

func postMessages(t *testing.T, s *testmock.MockStore, body string) *httptest.ResponseRecorder {
	t.Helper()

	sendQueue := make(chan dispatcher.SendItem, 10)
	ig := ingest.New(s, "from@example.com", sendQueue, newTestLogger())
	h := NewMessagesHandler(ig)

	router := testutil.SetupRouter(func(r chi.Router) {
		r.Post("/v1/messages", h.Submit)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMessagesSubmit_Success(t *testing.T) {
	s := new(testmock.MockStore)
	requestIDs := [][]uuid.UUID{{uuid.New(), uuid.New()}}
	s.On("InsertBatch", mock.Anything, "from@example.com", mock.Anything).
		Return([]uuid.UUID{uuid.New()}, requestIDs, nil)

	body := `{"messages":[{"topic_id":"newsletter","emails":["a@example.com","b@example.com"],"subject":"Hi","content":"<p>hi</p>"}]}`
	w := postMessages(t, s, body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ingest.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 2, resp.Success)
	require.Equal(t, 0, resp.Errors)
	require.False(t, resp.Scheduled)
}

func TestMessagesSubmit_ValidationError(t *testing.T) {
	s := new(testmock.MockStore)

	w := postMessages(t, s, `{"messages":[]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	s.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessagesSubmit_MalformedBody(t *testing.T) {
	s := new(testmock.MockStore)

	w := postMessages(t, s, `{"messages": not-json}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessagesSubmit_StoreError(t *testing.T) {
	s := new(testmock.MockStore)
	s.On("InsertBatch", mock.Anything, "from@example.com", mock.Anything).
		Return(nil, nil, errors.New("connection reset"))

	body := `{"messages":[{"topic_id":"newsletter","emails":["a@example.com"],"subject":"Hi","content":"<p>hi</p>"}]}`
	w := postMessages(t, s, body)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
