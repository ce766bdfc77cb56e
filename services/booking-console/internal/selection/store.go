package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/slots"
)

var ErrUnknownWindow = errors.New("unknown window")

// InvalidSelectionError is returned when a start time is not one the window offers
// for the active duration.
type InvalidSelectionError struct {
	Index  int
	Window timeofday.Interval
	Start  int
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("start %s is not an option of window %d (%s)", timeofday.Format(e.Start), e.Index, e.Window)
}

// Store remembers the chosen start time for every window of the current suggestion set.
// Entries are keyed by the window's own start/end pair; the index API addresses the
// ordered set as the authority returned it.
type Store struct {
	mu       sync.RWMutex
	step     int
	duration int
	windows  []timeofday.Interval
	chosen   map[timeofday.Interval]int
}

func NewStore(step int) *Store {
	if step <= 0 {
		step = slots.DefaultStep
	}
	return &Store{step: step, chosen: map[timeofday.Interval]int{}}
}

// Initialize replaces the whole selection: every window starts at its own start.
func (s *Store) Initialize(windows []timeofday.Interval, duration int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.duration = duration
	s.windows = append([]timeofday.Interval(nil), windows...)
	s.chosen = make(map[timeofday.Interval]int, len(windows))
	for _, w := range s.windows {
		s.chosen[w] = w.Start
	}
}

// Clear discards the windows and every selection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = nil
	s.chosen = map[timeofday.Interval]int{}
	s.duration = 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

func (s *Store) Duration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

func (s *Store) Step() int {
	return s.step
}

func (s *Store) Windows() []timeofday.Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]timeofday.Interval(nil), s.windows...)
}

func (s *Store) Window(index int) (timeofday.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window(index)
}

func (s *Store) window(index int) (timeofday.Interval, error) {
	if index < 0 || index >= len(s.windows) {
		return timeofday.Interval{}, fmt.Errorf("%w: index %d", ErrUnknownWindow, index)
	}
	return s.windows[index], nil
}

// Options lists the start times the window at index offers for the active duration.
func (s *Store) Options(index int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, err := s.window(index)
	if err != nil {
		return nil, err
	}
	return slots.Options(w, s.duration, s.step), nil
}

// Set records start as the chosen offset for the window at index.
func (s *Store) Set(index, start int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.window(index)
	if err != nil {
		return err
	}
	if !slots.IsOption(w, s.duration, s.step, start) {
		return &InvalidSelectionError{Index: index, Window: w, Start: start}
	}
	s.chosen[w] = start
	return nil
}

// Get returns the chosen start for the window at index, or the window start when unset.
func (s *Store) Get(index int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, err := s.window(index)
	if err != nil {
		return 0, err
	}
	if start, ok := s.chosen[w]; ok {
		return start, nil
	}
	return w.Start, nil
}

// Candidate is the booking interval derived from the current selection at index.
func (s *Store) Candidate(index int) (timeofday.Interval, error) {
	start, err := s.Get(index)
	if err != nil {
		return timeofday.Interval{}, err
	}
	return slots.Candidate(start, s.Duration()), nil
}
