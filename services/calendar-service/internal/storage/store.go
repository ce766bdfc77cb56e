package storage

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
)

// Admit inspects everything already occupied and returns an error to refuse a booking.
type Admit func(occupied []timeofday.Interval) error

// Store keeps busy intervals and booked slots. Book runs admit and the insert atomically
// with respect to other bookings and ingests.
type Store interface {
	ReplaceBusy(ctx context.Context, users []model.UserBusy) error
	Occupied(ctx context.Context) ([]timeofday.Interval, error)
	Calendar(ctx context.Context, userID int64) (model.Calendar, error)
	Book(ctx context.Context, b model.Booking, admit Admit) error
}
