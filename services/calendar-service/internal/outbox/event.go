package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
)

// Event types double as Kafka topic names.
const (
	TypeSlotBooked   = "calendar.slot.booked.v1"
	TypeBusyIngested = "calendar.busy.ingested.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type slotBookedPayload struct {
	BookingID string             `json:"booking_id"`
	Slot      timeofday.Interval `json:"slot"`
	Duration  int                `json:"duration"`
	RequestID string             `json:"request_id,omitempty"`
	BookedAt  string             `json:"booked_at"`
}

func SlotBooked(b model.Booking) (Event, error) {
	payload, err := json.Marshal(slotBookedPayload{
		BookingID: b.ID,
		Slot:      b.Slot,
		Duration:  b.Duration,
		RequestID: b.RequestID,
		BookedAt:  b.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     TypeSlotBooked,
		Payload:       payload,
	}, nil
}

type busyIngestedPayload struct {
	UserIDs   []int64 `json:"user_ids"`
	Intervals int     `json:"intervals"`
}

// BusyIngested is keyed by a fixed aggregate so ingests stay ordered on one partition.
func BusyIngested(users []model.UserBusy) (Event, error) {
	p := busyIngestedPayload{UserIDs: make([]int64, 0, len(users))}
	for _, u := range users {
		p.UserIDs = append(p.UserIDs, u.ID)
		p.Intervals += len(u.Busy)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "calendar",
		AggregateID:   "busy",
		EventType:     TypeBusyIngested,
		Payload:       payload,
	}, nil
}
