package storage

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
)

// Memory is the single-process store used when no database is configured.
type Memory struct {
	mu     sync.Mutex
	busy   map[int64][]timeofday.Interval
	booked []model.Booking
}

func NewMemory() *Memory {
	return &Memory{busy: map[int64][]timeofday.Interval{}}
}

func (m *Memory) ReplaceBusy(_ context.Context, users []model.UserBusy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.busy[u.ID] = append([]timeofday.Interval(nil), u.Busy...)
	}
	return nil
}

func (m *Memory) Occupied(_ context.Context) ([]timeofday.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occupiedLocked(), nil
}

func (m *Memory) occupiedLocked() []timeofday.Interval {
	var out []timeofday.Interval
	for _, list := range m.busy {
		out = append(out, list...)
	}
	for _, b := range m.booked {
		out = append(out, b.Slot)
	}
	return out
}

func (m *Memory) Calendar(_ context.Context, userID int64) (model.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal := model.Calendar{
		Busy:   append([]timeofday.Interval{}, m.busy[userID]...),
		Booked: make([]timeofday.Interval, 0, len(m.booked)),
	}
	for _, b := range m.booked {
		cal.Booked = append(cal.Booked, b.Slot)
	}
	return cal, nil
}

func (m *Memory) Book(_ context.Context, b model.Booking, admit Admit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := admit(m.occupiedLocked()); err != nil {
		return err
	}
	m.booked = append(m.booked, b)
	return nil
}
