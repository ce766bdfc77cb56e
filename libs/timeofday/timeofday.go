package timeofday

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a minute-of-day value.
const MinutesPerDay = 24 * 60

// FormatError reports a time-of-day string that is not a valid "HH:MM" value.
type FormatError struct {
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time of day %q: %s", e.Text, e.Reason)
}

// Parse converts "HH:MM" into minutes since midnight.
// Hours must be in [0,23] and minutes in [0,59]; anything else is rejected.
func Parse(text string) (int, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return 0, &FormatError{Text: text, Reason: "expected HH:MM"}
	}
	hour, err := parseGroup(parts[0])
	if err != nil {
		return 0, &FormatError{Text: text, Reason: "hour is not a number"}
	}
	minute, err := parseGroup(parts[1])
	if err != nil {
		return 0, &FormatError{Text: text, Reason: "minute is not a number"}
	}
	if hour > 23 {
		return 0, &FormatError{Text: text, Reason: "hour out of range"}
	}
	if minute > 59 {
		return 0, &FormatError{Text: text, Reason: "minute out of range"}
	}
	return hour*60 + minute, nil
}

func parseGroup(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

// Format renders minutes since midnight as zero-padded "HH:MM". Only Valid values
// round-trip through Parse; callers must not pass anything else.
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Valid reports whether m is a minute-of-day value.
func Valid(m int) bool {
	return m >= 0 && m < MinutesPerDay
}

// Interval is a half-open [Start, End) range of minutes since midnight.
// On the wire it is a two element array of "HH:MM" strings.
type Interval struct {
	Start int
	End   int
}

// NewInterval validates start < end with both bounds Valid, so every interval it
// returns has a wire form Parse accepts.
func NewInterval(start, end int) (Interval, error) {
	if !Valid(start) || !Valid(end) {
		return Interval{}, fmt.Errorf("interval [%d,%d) outside the day", start, end)
	}
	if start >= end {
		return Interval{}, fmt.Errorf("interval %s-%s: start must be before end", Format(start), Format(end))
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses a start/end pair of "HH:MM" strings.
func ParseInterval(start, end string) (Interval, error) {
	s, err := Parse(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// Length returns the interval length in minutes.
func (iv Interval) Length() int {
	return iv.End - iv.Start
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return other.Start >= iv.Start && other.End <= iv.End
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

func (iv Interval) String() string {
	return Format(iv.Start) + "-" + Format(iv.End)
}

// Pair returns the wire representation.
func (iv Interval) Pair() [2]string {
	return [2]string{Format(iv.Start), Format(iv.End)}
}

func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.Pair())
}

func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval must have exactly two elements, got %d", len(pair))
	}
	parsed, err := ParseInterval(pair[0], pair[1])
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}
