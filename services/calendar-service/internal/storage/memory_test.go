package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
)

func TestMemoryReplaceAndCalendar(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.ReplaceBusy(ctx, []model.UserBusy{
		{ID: 1, Busy: []timeofday.Interval{{Start: 540, End: 630}}},
		{ID: 2, Busy: []timeofday.Interval{{Start: 660, End: 720}}},
	}))
	require.NoError(t, m.ReplaceBusy(ctx, []model.UserBusy{
		{ID: 1, Busy: []timeofday.Interval{{Start: 780, End: 840}}},
	}))

	cal, err := m.Calendar(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []timeofday.Interval{{Start: 780, End: 840}}, cal.Busy)
	assert.Empty(t, cal.Booked)

	occupied, err := m.Occupied(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []timeofday.Interval{{Start: 780, End: 840}, {Start: 660, End: 720}}, occupied)

	unknown, err := m.Calendar(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, unknown.Busy)
	assert.Empty(t, unknown.Busy)
}

func TestMemoryBookRespectsAdmit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	refuse := errors.New("taken")

	err := m.Book(ctx, model.Booking{ID: "a", Slot: timeofday.Interval{Start: 600, End: 630}}, func([]timeofday.Interval) error {
		return refuse
	})
	assert.ErrorIs(t, err, refuse)

	require.NoError(t, m.Book(ctx, model.Booking{ID: "b", Slot: timeofday.Interval{Start: 600, End: 630}}, func([]timeofday.Interval) error {
		return nil
	}))
	cal, err := m.Calendar(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []timeofday.Interval{{Start: 600, End: 630}}, cal.Booked)
}

func TestMemoryBookSerialises(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	slot := timeofday.Interval{Start: 600, End: 630}
	admit := func(occupied []timeofday.Interval) error {
		for _, o := range occupied {
			if o.Overlaps(slot) {
				return errors.New("taken")
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Book(ctx, model.Booking{Slot: slot}, admit) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}
