package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/authority"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/selection"
)

type bookCall struct {
	duration int
	slot     timeofday.Interval
}

type fakeBooker struct {
	mu      sync.Mutex
	calls   []bookCall
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeBooker) Book(_ context.Context, duration int, slot timeofday.Interval) (authority.Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, bookCall{duration: duration, slot: slot})
	err := f.err
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err != nil {
		return authority.Receipt{}, err
	}
	return authority.Receipt{Status: "booked", BookingID: "b-1"}, nil
}

func (f *fakeBooker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCoordinator(t *testing.T, b Booker) (*Coordinator, *selection.Store) {
	t.Helper()
	store := selection.NewStore(5)
	store.Initialize([]timeofday.Interval{{Start: 540, End: 630}, {Start: 720, End: 840}}, 30)
	return NewCoordinator(b, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestConfirmFromIdleIsIllegal(t *testing.T) {
	b := &fakeBooker{}
	c, _ := newTestCoordinator(t, b)

	st, err := c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, Idle, st.Phase)
	assert.Equal(t, 0, b.callCount())
}

func TestConfirmSuccess(t *testing.T) {
	b := &fakeBooker{}
	c, store := newTestCoordinator(t, b)
	require.NoError(t, store.Set(0, 585))

	st, err := c.Open(0)
	require.NoError(t, err)
	assert.Equal(t, Confirming, st.Phase)
	assert.Equal(t, [2]string{"09:45", "10:15"}, st.Candidate.Pair())

	st, err = c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, "b-1", st.BookingID)
	require.Equal(t, 1, b.callCount())
	assert.Equal(t, bookCall{duration: 30, slot: timeofday.Interval{Start: 585, End: 615}}, b.calls[0])
}

func TestCancelReturnsToIdle(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeBooker{})
	_, err := c.Open(1)
	require.NoError(t, err)

	require.NoError(t, c.Cancel())
	st := c.Status()
	assert.Equal(t, Idle, st.Phase)
	assert.Equal(t, timeofday.Interval{}, st.Candidate)

	assert.ErrorIs(t, c.Cancel(), ErrIllegalTransition)
}

func TestFailureAndRetryKeepCandidate(t *testing.T) {
	b := &fakeBooker{err: &authority.RejectionError{StatusCode: 400, Detail: "slot already taken"}}
	c, store := newTestCoordinator(t, b)
	require.NoError(t, store.Set(0, 585))
	_, err := c.Open(0)
	require.NoError(t, err)

	st, err := c.Confirm(context.Background())
	var rej *authority.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, Failed, st.Phase)
	assert.Equal(t, "slot already taken", st.Reason)

	st, err = c.Retry()
	require.NoError(t, err)
	assert.Equal(t, Confirming, st.Phase)
	assert.Empty(t, st.Reason)
	assert.Equal(t, [2]string{"09:45", "10:15"}, st.Candidate.Pair())

	b.err = nil
	st, err = c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, b.calls[0].slot, b.calls[1].slot)
}

func TestConfirmBooksCandidateShownAtOpen(t *testing.T) {
	b := &fakeBooker{}
	c, store := newTestCoordinator(t, b)

	st, err := c.Open(0)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"09:00", "09:30"}, st.Candidate.Pair())

	require.NoError(t, store.Set(0, 600))

	st, err = c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, st.Phase)
	require.Len(t, b.calls, 1)
	assert.Equal(t, [2]string{"09:00", "09:30"}, b.calls[0].slot.Pair())
	assert.Equal(t, 30, b.calls[0].duration)
}

func TestRetryBooksCandidateOfFailedAttempt(t *testing.T) {
	b := &fakeBooker{err: &authority.RejectionError{StatusCode: 400, Detail: "Slot not available"}}
	c, store := newTestCoordinator(t, b)
	require.NoError(t, store.Set(0, 585))
	_, err := c.Open(0)
	require.NoError(t, err)
	_, err = c.Confirm(context.Background())
	require.Error(t, err)

	require.NoError(t, store.Set(0, 600))

	st, err := c.Retry()
	require.NoError(t, err)
	assert.Equal(t, [2]string{"09:45", "10:15"}, st.Candidate.Pair())

	b.err = nil
	_, err = c.Confirm(context.Background())
	require.NoError(t, err)
	require.Len(t, b.calls, 2)
	assert.Equal(t, [2]string{"09:45", "10:15"}, b.calls[1].slot.Pair())
}

func TestRetryOnlyFromFailed(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeBooker{})
	_, err := c.Retry()
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, _ = c.Open(0)
	_, err = c.Retry()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestOpenDiscardsFailedReason(t *testing.T) {
	b := &fakeBooker{err: &authority.RejectionError{StatusCode: 400, Detail: "nope"}}
	c, _ := newTestCoordinator(t, b)
	_, _ = c.Open(0)
	_, _ = c.Confirm(context.Background())
	require.Equal(t, Failed, c.Status().Phase)

	st, err := c.Open(1)
	require.NoError(t, err)
	assert.Equal(t, Confirming, st.Phase)
	assert.Equal(t, 1, st.Index)
	assert.Empty(t, st.Reason)
}

func TestOpenUnknownWindow(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeBooker{})
	_, err := c.Open(5)
	assert.ErrorIs(t, err, selection.ErrUnknownWindow)
	assert.Equal(t, Idle, c.Status().Phase)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "x", Reason(&authority.RejectionError{Detail: "x"}))
	assert.Equal(t, ReasonUnknown, Reason(&authority.RejectionError{StatusCode: 500}))
	assert.Equal(t, ReasonNetwork, Reason(&authority.RequestError{Op: "book", Err: errors.New("refused")}))
}

func TestConfirmWhileInFlight(t *testing.T) {
	b := &fakeBooker{release: make(chan struct{}), started: make(chan struct{}, 1)}
	c, _ := newTestCoordinator(t, b)
	_, _ = c.Open(0)

	done := make(chan Status, 1)
	go func() {
		st, _ := c.Confirm(context.Background())
		done <- st
	}()
	<-b.started

	assert.Equal(t, Submitting, c.Status().Phase)
	_, err := c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(b.release)
	select {
	case st := <-done:
		assert.Equal(t, Success, st.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("confirm did not return")
	}
	assert.Equal(t, 1, b.callCount())
}

func TestCancelDuringFlightDropsResponse(t *testing.T) {
	b := &fakeBooker{release: make(chan struct{}), started: make(chan struct{}, 1)}
	c, _ := newTestCoordinator(t, b)
	_, _ = c.Open(0)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Confirm(context.Background())
		errc <- err
	}()
	<-b.started

	require.NoError(t, c.Cancel())
	close(b.release)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrDiscarded)
	case <-time.After(2 * time.Second):
		t.Fatal("confirm did not return")
	}
	assert.Equal(t, Idle, c.Status().Phase)
}

func TestCloseRunsHookFromSuccessOnly(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeBooker{})
	calls := 0
	c.OnClose(func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, c.Close(context.Background()), "close while idle is a no-op")
	assert.Equal(t, 0, calls)

	_, _ = c.Open(0)
	assert.ErrorIs(t, c.Close(context.Background()), ErrIllegalTransition)

	_, err := c.Confirm(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, Idle, c.Status().Phase)
}
