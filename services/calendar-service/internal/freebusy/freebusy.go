// Package freebusy derives the common free windows of a group from their busy intervals.
package freebusy

import (
	"sort"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
)

// Merge sorts a copy of intervals and coalesces overlapping or touching entries.
func Merge(intervals []timeofday.Interval) []timeofday.Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]timeofday.Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []timeofday.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.End < iv.Start {
			merged = append(merged, iv)
			continue
		}
		if iv.End > last.End {
			last.End = iv.End
		}
	}
	return merged
}

// Invert returns the gaps of merged busy intervals inside day. Busy time outside day is ignored.
func Invert(busy []timeofday.Interval, day timeofday.Interval) []timeofday.Interval {
	var free []timeofday.Interval
	prev := day.Start
	for _, b := range busy {
		if b.Start >= day.End {
			break
		}
		if b.Start > prev {
			free = append(free, timeofday.Interval{Start: prev, End: b.Start})
		}
		if b.End > prev {
			prev = b.End
		}
	}
	if prev < day.End {
		free = append(free, timeofday.Interval{Start: prev, End: day.End})
	}
	return free
}

// Windows returns, in chronological order, the free windows inside day that can hold duration
// minutes given everything occupied. limit <= 0 means no limit.
func Windows(occupied []timeofday.Interval, day timeofday.Interval, duration, limit int) []timeofday.Interval {
	out := []timeofday.Interval{}
	if duration <= 0 {
		return out
	}
	for _, w := range Invert(Merge(occupied), day) {
		if w.Length() < duration {
			continue
		}
		out = append(out, w)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Within reports whether slot lies entirely inside one of windows.
func Within(slot timeofday.Interval, windows []timeofday.Interval) bool {
	for _, w := range windows {
		if w.Contains(slot) {
			return true
		}
	}
	return false
}
