package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/metrics"
	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
)

const tracerName = "github.com/md-rashed-zaman/slotbook/authority"

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Token, when set, supplies a bearer token for write calls that need one (ingest).
	Token func() (string, error)
	// Transport overrides the base transport; it is still wrapped for tracing.
	Transport http.RoundTripper
}

// Client talks to the calendar authority over its JSON HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() (string, error)
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Receipt is the optional body of a successful booking.
type Receipt struct {
	Status    string              `json:"status"`
	Slot      *timeofday.Interval `json:"slot,omitempty"`
	BookingID string              `json:"booking_id,omitempty"`
}

// CalendarView is the read-only busy/booked listing for one user.
type CalendarView struct {
	Busy   []timeofday.Interval `json:"busy"`
	Booked []timeofday.Interval `json:"booked"`
}

func NewClient(logger *slog.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		token:  cfg.Token,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Suggest asks for free windows that can host duration minutes.
func (c *Client) Suggest(ctx context.Context, duration int) ([]timeofday.Interval, error) {
	ctx, span := c.tracer.Start(ctx, "authority.suggest", trace.WithAttributes(
		attribute.Int("booking.duration_minutes", duration),
	))
	defer span.End()

	q := url.Values{"duration": {strconv.Itoa(duration)}}
	resp, err := c.do(ctx, http.MethodGet, "/suggest?"+q.Encode(), nil, false)
	if err != nil {
		return nil, c.fail(span, &RequestError{Op: "suggest", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(span, &RequestError{Op: "suggest", StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)})
	}

	var windows []timeofday.Interval
	if err := json.NewDecoder(resp.Body).Decode(&windows); err != nil {
		return nil, c.fail(span, &RequestError{Op: "suggest", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)})
	}
	span.SetAttributes(attribute.Int("booking.windows", len(windows)))
	metrics.Outbound("suggest", "ok")
	return windows, nil
}

// Book asks the authority to commit slot. A refusal is returned as *RejectionError,
// transport problems as *RequestError.
func (c *Client) Book(ctx context.Context, duration int, slot timeofday.Interval) (Receipt, error) {
	ctx, span := c.tracer.Start(ctx, "authority.book", trace.WithAttributes(
		attribute.Int("booking.duration_minutes", duration),
		attribute.String("booking.slot", slot.String()),
	))
	defer span.End()

	body, err := json.Marshal(struct {
		Slot timeofday.Interval `json:"slot"`
	}{Slot: slot})
	if err != nil {
		return Receipt{}, c.fail(span, &RequestError{Op: "book", Err: err})
	}

	q := url.Values{"duration": {strconv.Itoa(duration)}}
	resp, err := c.do(ctx, http.MethodPost, "/book?"+q.Encode(), body, false)
	if err != nil {
		return Receipt{}, c.fail(span, &RequestError{Op: "book", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, c.fail(span, &RejectionError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)})
	}

	// The body is optional; an unreadable one still means the booking was accepted.
	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil && err != io.EOF {
		c.logger.Debug("book response body ignored", "err", err)
	}
	metrics.Outbound("book", "ok")
	return receipt, nil
}

// Ingest pushes a raw busy-interval payload. The payload is checked for JSON syntax
// before anything is sent.
func (c *Client) Ingest(ctx context.Context, payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 || !json.Valid(payload) {
		return ErrInvalidJSON
	}
	resp, err := c.do(ctx, http.MethodPost, "/slots", payload, true)
	if err != nil {
		return &RequestError{Op: "ingest", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Op: "ingest", StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	metrics.Outbound("ingest", "ok")
	return nil
}

// Calendar fetches the busy and booked lists for userID.
func (c *Client) Calendar(ctx context.Context, userID int) (CalendarView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/calendar/"+strconv.Itoa(userID), nil, false)
	if err != nil {
		return CalendarView{}, &RequestError{Op: "calendar", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CalendarView{}, &RequestError{Op: "calendar", StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	var view CalendarView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return CalendarView{}, &RequestError{Op: "calendar", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return view, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, authorize bool) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID := httpx.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = httpx.NewRequestID()
	}
	req.Header.Set(httpx.RequestIDHeader, requestID)

	if authorize && c.token != nil {
		tok, err := c.token()
		if err != nil {
			return nil, fmt.Errorf("build token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("authority request failed", "request_id", requestID, "method", method, "path", path, "err", err)
		return nil, err
	}
	c.logger.Debug("authority request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	switch e := err.(type) {
	case *RejectionError:
		metrics.Outbound("book", "rejected")
	case *RequestError:
		metrics.Outbound(e.Op, "error")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// readDetail extracts {"detail": "..."} from an error body. Non-string details
// (validation error lists) and unreadable bodies yield "".
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
