package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/storage"
)

const sampleA = `{"users":[
	{"id":1,"busy":[["09:00","10:30"],["13:00","14:00"]]},
	{"id":2,"busy":[["11:00","12:00"],["15:00","16:00"]]}
]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := NewCalendarHandler(storage.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	mux := http.NewServeMux()
	h.Register(mux, func(next http.Handler) http.Handler { return next })
	srv := httptest.NewServer(httpx.WithRequestID(mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestSuggestAfterIngest(t *testing.T) {
	srv := newServer(t)

	code, body := do(t, srv, http.MethodGet, "/suggest?duration=30", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[["09:00","18:00"]]`, body)

	code, body = do(t, srv, http.MethodPost, "/slots", sampleA)
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{"status":"saved"}`, body)

	code, body = do(t, srv, http.MethodGet, "/suggest?duration=30", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[["10:30","11:00"],["12:00","13:00"],["14:00","15:00"]]`, body)

	code, body = do(t, srv, http.MethodGet, "/suggest?duration=600", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)
}

func TestSuggestRejectsBadDuration(t *testing.T) {
	srv := newServer(t)
	for _, q := range []string{"", "?duration=abc", "?duration=0"} {
		code, body := do(t, srv, http.MethodGet, "/suggest"+q, "")
		assert.Equal(t, http.StatusUnprocessableEntity, code, q)
		assert.Contains(t, body, `"detail"`)
	}
}

func TestBookFlow(t *testing.T) {
	srv := newServer(t)
	code, _ := do(t, srv, http.MethodPost, "/slots", sampleA)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["12:15","12:45"]}`)
	require.Equal(t, http.StatusOK, code, body)
	var resp struct {
		Status    string   `json:"status"`
		Slot      []string `json:"slot"`
		BookingID string   `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "booked", resp.Status)
	assert.Equal(t, []string{"12:15", "12:45"}, resp.Slot)
	assert.NotEmpty(t, resp.BookingID)

	code, body = do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["12:30","13:00"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"detail":"Slot not available"}`, body)

	code, body = do(t, srv, http.MethodGet, "/suggest?duration=30", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[["10:30","11:00"],["14:00","15:00"],["16:00","18:00"]]`, body)

	code, body = do(t, srv, http.MethodGet, "/calendar/1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"busy":[["09:00","10:30"],["13:00","14:00"]],"booked":[["12:15","12:45"]]}`, body)
}

func TestBookBeyondSuggestionLimit(t *testing.T) {
	srv := newServer(t)
	code, _ := do(t, srv, http.MethodPost, "/slots", sampleA)
	require.Equal(t, http.StatusOK, code)

	// 16:00-18:00 is the fourth free window, so it is never suggested but is still bookable.
	code, body := do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["17:00","17:30"]}`)
	assert.Equal(t, http.StatusOK, code, body)
}

func TestBookRejections(t *testing.T) {
	srv := newServer(t)

	code, body := do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["09:00","10:00"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"detail":"Invalid duration"}`, body)

	code, body = do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["08:00","08:30"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"detail":"Slot not available"}`, body)

	code, _ = do(t, srv, http.MethodPost, "/book?duration=30", `{"slot":["9am","10am"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, srv, http.MethodPost, "/book?duration=30", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, srv, http.MethodGet, "/book?duration=30", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestSlotsRejectsMalformed(t *testing.T) {
	srv := newServer(t)
	code, body := do(t, srv, http.MethodPost, "/slots", `{"users":[{"id":1,"busy":[["10:00","09:00"]]}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, "detail")

	code, _ = do(t, srv, http.MethodPost, "/slots", `not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestCalendarRejectsBadUserID(t *testing.T) {
	srv := newServer(t)
	code, _ := do(t, srv, http.MethodGet, "/calendar/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body := do(t, srv, http.MethodGet, "/calendar/7", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"busy":[],"booked":[]}`, body)
}
