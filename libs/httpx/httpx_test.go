package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"request_id": RequestIDFromContext(r.Context())})
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRequestIDPropagates(t *testing.T) {
	h := WithRequestID(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "abc", rw.Header().Get(RequestIDHeader))
	assert.JSONEq(t, `{"request_id":"abc"}`, rw.Body.String())

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rw.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"*"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/book", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusNoContent, rw.Code)
	assert.Equal(t, "*", rw.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rw.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"http://a.example"}})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/suggest", nil)
	req.Header.Set("Origin", "http://b.example")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
}

func TestMemoryRateLimiter(t *testing.T) {
	rl := NewMemoryRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := RateLimit(rl, discardLogger(), true)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/suggest", nil))
		codes = append(codes, rw.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	now = now.Add(2 * time.Minute)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/suggest", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenLimiter) Name() string                                { return "broken" }

func TestRateLimitFailureModes(t *testing.T) {
	rw := httptest.NewRecorder()
	RateLimit(brokenLimiter{}, discardLogger(), true)(okHandler()).
		ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = httptest.NewRecorder()
	RateLimit(brokenLimiter{}, discardLogger(), false)(okHandler()).
		ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	assert.JSONEq(t, `{"detail":"rate limiter unavailable"}`, rw.Body.String())
}

func TestRecover(t *testing.T) {
	h := WithRecover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
	assert.JSONEq(t, `{"detail":"internal error"}`, rw.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	require.NoError(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}{"b":2}`))
	assert.Error(t, DecodeJSON(req, &v))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/calendar/{user_id}", routeLabel("/calendar/42"))
	assert.Equal(t, "/suggest", routeLabel("/suggest"))
}
