package slots

import "github.com/md-rashed-zaman/slotbook/libs/timeofday"

// DefaultStep is the granularity, in minutes, between offered start times.
const DefaultStep = 5

// Options returns the start times a booking of length duration can take inside window,
// walking from the window start in step increments up to window.End-duration inclusive.
//
// A window shorter than duration yields no options.
func Options(window timeofday.Interval, duration, step int) []int {
	if duration <= 0 || step <= 0 {
		return nil
	}
	maxStart := window.End - duration
	if maxStart < window.Start {
		return nil
	}

	opts := make([]int, 0, (maxStart-window.Start)/step+1)
	for t := window.Start; t <= maxStart; t += step {
		opts = append(opts, t)
	}
	return opts
}

// Fits reports whether window can host at least one booking of length duration.
func Fits(window timeofday.Interval, duration int) bool {
	return duration > 0 && window.End-duration >= window.Start
}

// IsOption reports whether start is one of Options(window, duration, step) without
// materialising the list.
func IsOption(window timeofday.Interval, duration, step, start int) bool {
	if duration <= 0 || step <= 0 || !Fits(window, duration) {
		return false
	}
	if start < window.Start || start > window.End-duration {
		return false
	}
	return (start-window.Start)%step == 0
}

// Candidate is the booking interval that starts at start and lasts duration minutes.
func Candidate(start, duration int) timeofday.Interval {
	return timeofday.Interval{Start: start, End: start + duration}
}
