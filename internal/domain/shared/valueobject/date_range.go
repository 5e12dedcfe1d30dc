package valueobject

import (
	"fmt"
	"time"
)

// Date returns a calendar date at UTC midnight. All billing arithmetic is
// day-granular; no time-of-day component is ever carried.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate strips any time-of-day component from t.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DateRange is an immutable inclusive range of calendar dates. The end date
// may be open (nil), meaning the range extends indefinitely.
type DateRange struct {
	start time.Time
	end   *time.Time
}

// NewDateRange creates a closed date range. Returns an error when the end
// date precedes the start date.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = Truncate(start), Truncate(end)
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("date range end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return DateRange{start: start, end: &end}, nil
}

// NewOpenDateRange creates a range with no end date.
func NewOpenDateRange(start time.Time) DateRange {
	return DateRange{start: Truncate(start)}
}

// MustDateRange creates a closed date range, panicking on invalid bounds.
// Intended for fixtures and constants.
func MustDateRange(start, end time.Time) DateRange {
	r, err := NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Start returns the first day of the range.
func (r DateRange) Start() time.Time {
	return r.start
}

// End returns the last day of the range, or nil when open-ended.
func (r DateRange) End() *time.Time {
	return r.end
}

// IsOpen returns true when the range has no end date.
func (r DateRange) IsOpen() bool {
	return r.end == nil
}

// Includes returns true when the date falls within the range.
func (r DateRange) Includes(t time.Time) bool {
	t = Truncate(t)
	if t.Before(r.start) {
		return false
	}
	return r.end == nil || !t.After(*r.end)
}

// Days returns the inclusive number of days covered by the range.
// An open range has no finite day count and returns 0.
func (r DateRange) Days() int {
	if r.end == nil {
		return 0
	}
	return int(r.end.Sub(r.start).Hours()/24) + 1
}

// Overlaps returns true when the two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	_, ok := r.Intersection(other)
	return ok
}

// Intersection returns the overlapping portion of two ranges. The second
// return value is false when the ranges do not overlap.
func (r DateRange) Intersection(other DateRange) (DateRange, bool) {
	start := r.start
	if other.start.After(start) {
		start = other.start
	}

	end := r.end
	switch {
	case end == nil:
		end = other.end
	case other.end != nil && other.end.Before(*end):
		end = other.end
	}

	if end != nil && end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{start: start, end: end}, true
}

// ClampTo bounds the range by another, returning the intersection or false.
func (r DateRange) ClampTo(bounds DateRange) (DateRange, bool) {
	return r.Intersection(bounds)
}

// IsSameOrAfter returns true when every day in the range falls on or after
// the given date.
func (r DateRange) IsSameOrAfter(t time.Time) bool {
	return !r.start.Before(Truncate(t))
}

// Equal returns true when both ranges cover exactly the same days.
func (r DateRange) Equal(other DateRange) bool {
	if !r.start.Equal(other.start) {
		return false
	}
	if (r.end == nil) != (other.end == nil) {
		return false
	}
	return r.end == nil || r.end.Equal(*other.end)
}

// String renders the range as "start – end" with ISO dates.
func (r DateRange) String() string {
	if r.end == nil {
		return fmt.Sprintf("%s – open", r.start.Format(time.DateOnly))
	}
	return fmt.Sprintf("%s – %s", r.start.Format(time.DateOnly), r.end.Format(time.DateOnly))
}
