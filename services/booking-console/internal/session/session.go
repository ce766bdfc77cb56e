package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/authority"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/selection"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/slots"
)

// ErrSuperseded is returned for a suggestion response that arrived after a newer
// request was issued; the response is dropped.
var ErrSuperseded = errors.New("suggestion request superseded")

// ErrBookingOpen rejects a selection change while a booking prompt is showing.
var ErrBookingOpen = errors.New("booking prompt is open")

const (
	MessageFetchFailed  = "Failed to fetch suggestions. Please try again."
	MessageNetworkError = "Network error. Please check your connection."
)

type Suggester interface {
	Suggest(ctx context.Context, duration int) ([]timeofday.Interval, error)
}

// Limits bounds the requested duration in minutes.
type Limits struct {
	Min     int
	Max     int
	Default int
}

func DefaultLimits() Limits {
	return Limits{Min: 5, Max: 120, Default: 30}
}

// Clamp coerces d into [Min, Max].
func (l Limits) Clamp(d int) int {
	if d < l.Min {
		return l.Min
	}
	if d > l.Max {
		return l.Max
	}
	return d
}

type Config struct {
	Limits Limits
	Step   int
}

// Row is one suggested window as presented to the user.
type Row struct {
	Index     int
	Window    timeofday.Interval
	Options   []int
	Selected  int
	Candidate timeofday.Interval
}

// Session owns the suggestion set, the per-window selection and the booking
// coordinator for one user.
type Session struct {
	mu       sync.Mutex
	client   Suggester
	store    *selection.Store
	coord    *booking.Coordinator
	limits   Limits
	logger   *slog.Logger
	seq      uint64
	duration int
	loading  bool
	lastErr  error
}

func New(client Suggester, booker booking.Booker, logger *slog.Logger, cfg Config) *Session {
	limits := cfg.Limits
	if limits.Min <= 0 || limits.Max < limits.Min {
		limits = DefaultLimits()
	}
	if limits.Default == 0 {
		limits.Default = DefaultLimits().Default
	}
	limits.Default = limits.Clamp(limits.Default)

	store := selection.NewStore(cfg.Step)
	s := &Session{
		client:   client,
		store:    store,
		coord:    booking.NewCoordinator(booker, store, logger),
		limits:   limits,
		logger:   logger,
		duration: limits.Default,
	}
	s.coord.OnClose(s.Refresh)
	return s
}

// RequestSuggestions fetches windows for duration (clamped to the limits) and
// re-seeds the selection. The previous suggestion set and any open booking are
// discarded before the request is sent.
func (s *Session) RequestSuggestions(ctx context.Context, duration int) ([]timeofday.Interval, error) {
	d := s.limits.Clamp(duration)
	if d != duration {
		s.logger.Debug("duration clamped", "requested", duration, "used", d)
	}

	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.duration = d
	s.loading = true
	s.lastErr = nil
	s.store.Clear()
	s.mu.Unlock()
	s.coord.Reset()

	windows, err := s.client.Suggest(ctx, d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if mine != s.seq {
		s.logger.Debug("stale suggestion response dropped", "seq", mine, "latest", s.seq)
		return nil, ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.logger.Warn("suggest failed", "duration", d, "err", err)
		return nil, err
	}

	usable := make([]timeofday.Interval, 0, len(windows))
	for _, w := range windows {
		if !slots.Fits(w, d) {
			s.logger.Warn("window too short for duration dropped", "window", w.String(), "duration", d)
			continue
		}
		usable = append(usable, w)
	}
	s.store.Initialize(usable, d)
	s.logger.Info("suggestions loaded", "duration", d, "windows", len(usable))
	return usable, nil
}

// Refresh repeats the last suggestion request.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.RequestSuggestions(ctx, s.Duration())
	return err
}

// Select records the chosen start for the window at index. It is refused unless
// the booking coordinator is idle.
func (s *Session) Select(index, start int) error {
	if phase := s.coord.Status().Phase; phase != booking.Idle {
		return fmt.Errorf("%w (%s)", ErrBookingOpen, phase)
	}
	return s.store.Set(index, start)
}

func (s *Session) Booking() *booking.Coordinator {
	return s.coord
}

func (s *Session) Limits() Limits {
	return s.limits
}

func (s *Session) Duration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError is the error of the most recent suggestion request, nil after a success.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Windows() []timeofday.Interval {
	return s.store.Windows()
}

// Rows computes the option list and current candidate for every window.
func (s *Session) Rows() []Row {
	windows := s.store.Windows()
	duration := s.store.Duration()
	rows := make([]Row, 0, len(windows))
	for i, w := range windows {
		selected, err := s.store.Get(i)
		if err != nil {
			// The set was replaced while iterating.
			break
		}
		rows = append(rows, Row{
			Index:     i,
			Window:    w,
			Options:   slots.Options(w, duration, s.store.Step()),
			Selected:  selected,
			Candidate: slots.Candidate(selected, duration),
		})
	}
	return rows
}

// FailureMessage is the retryable banner text for a suggestion error.
func FailureMessage(err error) string {
	var re *authority.RequestError
	if errors.As(err, &re) && re.Err == nil {
		return MessageFetchFailed
	}
	return MessageNetworkError
}
