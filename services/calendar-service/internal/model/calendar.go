package model

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
)

// UserBusy is one user's busy intervals as posted to /slots.
type UserBusy struct {
	ID   int64                `json:"id"`
	Busy []timeofday.Interval `json:"busy"`
}

type SlotsRequest struct {
	Users []UserBusy `json:"users"`
}

type Booking struct {
	ID        string
	Slot      timeofday.Interval
	Duration  int
	RequestID string
	CreatedAt time.Time
}

// Calendar is a user's own busy intervals plus every booked slot.
type Calendar struct {
	Busy   []timeofday.Interval `json:"busy"`
	Booked []timeofday.Interval `json:"booked"`
}
