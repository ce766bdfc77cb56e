package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/freebusy"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/calendar-service/internal/storage"
)

const (
	detailInvalidDuration  = "Invalid duration"
	detailSlotNotAvailable = "Slot not available"
)

var errSlotNotAvailable = errors.New("slot not available")

type Config struct {
	Workday      timeofday.Interval
	SuggestLimit int
}

type CalendarHandler struct {
	store  storage.Store
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

func NewCalendarHandler(store storage.Store, logger *slog.Logger, cfg Config) *CalendarHandler {
	if cfg.Workday.Length() <= 0 {
		cfg.Workday = timeofday.Interval{Start: 9 * 60, End: 18 * 60}
	}
	if cfg.SuggestLimit <= 0 {
		cfg.SuggestLimit = 3
	}
	return &CalendarHandler{store: store, logger: logger, cfg: cfg, now: time.Now}
}

// Register mounts the calendar routes; guard wraps the ingest endpoint.
func (h *CalendarHandler) Register(mux *http.ServeMux, guard httpx.Middleware) {
	mux.Handle("POST /slots", guard(http.HandlerFunc(h.Slots)))
	mux.HandleFunc("GET /suggest", h.Suggest)
	mux.HandleFunc("GET /calendar/{user_id}", h.Calendar)
	mux.HandleFunc("POST /book", h.Book)
}

func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	var req model.SlotsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "invalid slots payload: "+err.Error())
		return
	}
	if err := h.store.ReplaceBusy(r.Context(), req.Users); err != nil {
		h.internalError(w, r, "replace busy intervals failed", err)
		return
	}

	n := 0
	for _, u := range req.Users {
		n += len(u.Busy)
	}
	ingestedIntervals.Add(float64(n))
	h.logger.Info("busy intervals saved", "request_id", httpx.RequestIDFromContext(r.Context()), "users", len(req.Users), "intervals", n)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *CalendarHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	duration, ok := durationParam(w, r)
	if !ok {
		return
	}
	occupied, err := h.store.Occupied(r.Context())
	if err != nil {
		h.internalError(w, r, "load occupied intervals failed", err)
		return
	}
	windows := freebusy.Windows(occupied, h.cfg.Workday, duration, h.cfg.SuggestLimit)
	suggestWindows.Observe(float64(len(windows)))
	httpx.WriteJSON(w, http.StatusOK, windows)
}

func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "user_id must be an integer")
		return
	}
	cal, err := h.store.Calendar(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, "load calendar failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cal)
}

type bookRequest struct {
	Slot *timeofday.Interval `json:"slot"`
}

type bookResponse struct {
	Status    string             `json:"status"`
	Slot      timeofday.Interval `json:"slot"`
	BookingID string             `json:"booking_id"`
}

func (h *CalendarHandler) Book(w http.ResponseWriter, r *http.Request) {
	duration, ok := durationParam(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "invalid booking payload: "+err.Error())
		return
	}
	if req.Slot == nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "slot is required")
		return
	}
	slot := *req.Slot
	if slot.Length() != duration {
		bookings.WithLabelValues("invalid_duration").Inc()
		httpx.WriteDetail(w, http.StatusBadRequest, detailInvalidDuration)
		return
	}

	b := model.Booking{
		ID:        uuid.NewString(),
		Slot:      slot,
		Duration:  duration,
		RequestID: httpx.RequestIDFromContext(r.Context()),
		CreatedAt: h.now().UTC(),
	}
	err := h.store.Book(r.Context(), b, func(occupied []timeofday.Interval) error {
		if !freebusy.Within(slot, freebusy.Windows(occupied, h.cfg.Workday, duration, 0)) {
			return errSlotNotAvailable
		}
		return nil
	})
	if errors.Is(err, errSlotNotAvailable) {
		bookings.WithLabelValues("unavailable").Inc()
		httpx.WriteDetail(w, http.StatusBadRequest, detailSlotNotAvailable)
		return
	}
	if err != nil {
		bookings.WithLabelValues("error").Inc()
		h.internalError(w, r, "book slot failed", err)
		return
	}

	bookings.WithLabelValues("booked").Inc()
	h.logger.Info("slot booked", "request_id", b.RequestID, "booking_id", b.ID, "slot", slot.String())
	httpx.WriteJSON(w, http.StatusOK, bookResponse{Status: "booked", Slot: slot, BookingID: b.ID})
}

func durationParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("duration")
	d, err := strconv.Atoi(raw)
	if err != nil || d <= 0 {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "duration must be a positive integer number of minutes")
		return 0, false
	}
	return d, true
}

func (h *CalendarHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
	httpx.WriteDetail(w, http.StatusInternalServerError, "internal error")
}
