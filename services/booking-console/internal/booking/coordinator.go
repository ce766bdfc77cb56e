package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/authority"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/selection"
)

// Phase is the position of the coordinator in the confirm/submit/react cycle.
type Phase int

const (
	Idle Phase = iota
	Confirming
	// Submitting is Confirming with the book request outstanding.
	Submitting
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Confirming:
		return "confirming"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const (
	ReasonUnknown = "Unknown error"
	ReasonNetwork = "Network error while booking."
)

var (
	ErrIllegalTransition = errors.New("illegal booking transition")
	ErrInFlight          = errors.New("booking request already in flight")
	// ErrDiscarded is returned by Confirm when the attempt was cancelled or replaced
	// while the authority was answering. The authority may still have stored the booking.
	ErrDiscarded = errors.New("booking attempt discarded")
)

// Status is a snapshot of the coordinator. Index and Candidate are meaningful in every
// phase except Idle; Reason only in Failed; BookingID only in Success.
type Status struct {
	Phase     Phase
	Index     int
	Duration  int
	Candidate timeofday.Interval
	Reason    string
	BookingID string
}

type Booker interface {
	Book(ctx context.Context, duration int, slot timeofday.Interval) (authority.Receipt, error)
}

// Coordinator drives a single booking attempt at a time against the authority.
type Coordinator struct {
	mu         sync.Mutex
	booker     Booker
	selection  *selection.Store
	logger     *slog.Logger
	afterClose func(context.Context) error

	status  Status
	attempt uint64
}

func NewCoordinator(booker Booker, store *selection.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		booker:    booker,
		selection: store,
		logger:    logger,
		status:    Status{Phase: Idle},
	}
}

// OnClose registers the hook run after a successful booking is dismissed.
func (c *Coordinator) OnClose(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterClose = fn
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Open binds the coordinator to the window at index and asks for confirmation.
// The candidate and duration are fixed here for the rest of the attempt.
// Any previous attempt, including one still in flight, is abandoned.
func (c *Coordinator) Open(index int) (Status, error) {
	cand, err := c.selection.Candidate(index)
	if err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	c.status = Status{
		Phase:     Confirming,
		Index:     index,
		Duration:  c.selection.Duration(),
		Candidate: cand,
	}
	return c.status, nil
}

// Cancel drops the open confirmation. It does not abort a request already sent.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status.Phase {
	case Confirming, Submitting:
		if c.status.Phase == Submitting {
			c.logger.Info("booking cancelled while in flight", "slot", c.status.Candidate.String())
		}
		c.attempt++
		c.status = Status{Phase: Idle}
		return nil
	default:
		return fmt.Errorf("%w: cancel from %s", ErrIllegalTransition, c.status.Phase)
	}
}

// Confirm submits the candidate recorded by Open, not the live selection. The returned
// error is the authority's answer when the booking failed; Status carries the
// resulting phase either way.
func (c *Coordinator) Confirm(ctx context.Context) (Status, error) {
	c.mu.Lock()
	switch c.status.Phase {
	case Confirming:
	case Submitting:
		c.mu.Unlock()
		return c.Status(), ErrInFlight
	default:
		st := c.status
		c.mu.Unlock()
		return st, fmt.Errorf("%w: confirm from %s", ErrIllegalTransition, st.Phase)
	}

	index := c.status.Index
	cand := c.status.Candidate
	duration := c.status.Duration
	c.status.Phase = Submitting
	attempt := c.attempt
	booker := c.booker
	c.mu.Unlock()

	c.logger.Info("booking submitted", "window", index, "slot", cand.String(), "duration", duration)
	receipt, bookErr := booker.Book(ctx, duration, cand)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != attempt {
		c.logger.Warn("booking response discarded", "slot", cand.String(), "err", bookErr)
		return c.status, ErrDiscarded
	}
	if bookErr != nil {
		c.status.Phase = Failed
		c.status.Reason = Reason(bookErr)
		c.logger.Warn("booking failed", "slot", cand.String(), "reason", c.status.Reason, "err", bookErr)
		return c.status, bookErr
	}
	c.status.Phase = Success
	c.status.BookingID = receipt.BookingID
	c.logger.Info("booking confirmed", "slot", cand.String(), "booking_id", receipt.BookingID)
	return c.status, nil
}

// Retry re-opens the confirmation for the same candidate after a failure.
func (c *Coordinator) Retry() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Phase != Failed {
		return c.status, fmt.Errorf("%w: retry from %s", ErrIllegalTransition, c.status.Phase)
	}
	c.status.Phase = Confirming
	c.status.Reason = ""
	return c.status, nil
}

// Close dismisses a successful booking and runs the OnClose hook. Closing while
// idle does nothing.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	switch c.status.Phase {
	case Idle:
		c.mu.Unlock()
		return nil
	case Success:
	default:
		phase := c.status.Phase
		c.mu.Unlock()
		return fmt.Errorf("%w: close from %s", ErrIllegalTransition, phase)
	}
	c.attempt++
	c.status = Status{Phase: Idle}
	hook := c.afterClose
	c.mu.Unlock()

	if hook == nil {
		return nil
	}
	return hook(ctx)
}

// Reset returns to Idle unconditionally, abandoning any attempt.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	c.status = Status{Phase: Idle}
}

// Reason maps a booking error to the text shown to the user.
func Reason(err error) string {
	var rej *authority.RejectionError
	if errors.As(err, &rej) {
		if rej.Detail != "" {
			return rej.Detail
		}
		return ReasonUnknown
	}
	return ReasonNetwork
}
