package valueobject

import (
	"fmt"
	"time"
)

// AbstractionPeriod is a recurring day/month window during which water may
// be abstracted each year, e.g. 1 October – 31 March. The window may span
// the calendar year end, so interval arithmetic against linear date ranges
// is cyclic: a spanning period is modelled as two linear sub-intervals.
type AbstractionPeriod struct {
	startDay   int
	startMonth time.Month
	endDay     int
	endMonth   time.Month
}

// NewAbstractionPeriod creates an abstraction period from recurring
// day/month bounds.
func NewAbstractionPeriod(startDay int, startMonth time.Month, endDay int, endMonth time.Month) (AbstractionPeriod, error) {
	if err := validateDayMonth(startDay, startMonth); err != nil {
		return AbstractionPeriod{}, fmt.Errorf("abstraction period start: %w", err)
	}
	if err := validateDayMonth(endDay, endMonth); err != nil {
		return AbstractionPeriod{}, fmt.Errorf("abstraction period end: %w", err)
	}
	return AbstractionPeriod{
		startDay:   startDay,
		startMonth: startMonth,
		endDay:     endDay,
		endMonth:   endMonth,
	}, nil
}

// MustAbstractionPeriod creates an abstraction period, panicking on invalid
// bounds. Intended for fixtures.
func MustAbstractionPeriod(startDay int, startMonth time.Month, endDay int, endMonth time.Month) AbstractionPeriod {
	p, err := NewAbstractionPeriod(startDay, startMonth, endDay, endMonth)
	if err != nil {
		panic(err)
	}
	return p
}

// AllYear returns the 1 January – 31 December abstraction period.
func AllYear() AbstractionPeriod {
	return AbstractionPeriod{startDay: 1, startMonth: time.January, endDay: 31, endMonth: time.December}
}

func validateDayMonth(day int, month time.Month) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("invalid month %d", month)
	}
	// Use a leap year so 29 February validates.
	if day < 1 || day > daysInMonth(2000, month) {
		return fmt.Errorf("invalid day %d for month %s", day, month)
	}
	return nil
}

func daysInMonth(year int, month time.Month) int {
	return Date(year, month, 1).AddDate(0, 1, -1).Day()
}

// StartDay returns the recurring start day of month.
func (p AbstractionPeriod) StartDay() int { return p.startDay }

// StartMonth returns the recurring start month.
func (p AbstractionPeriod) StartMonth() time.Month { return p.startMonth }

// EndDay returns the recurring end day of month.
func (p AbstractionPeriod) EndDay() int { return p.endDay }

// EndMonth returns the recurring end month.
func (p AbstractionPeriod) EndMonth() time.Month { return p.endMonth }

// spansYearEnd returns true when the window wraps past 31 December,
// e.g. 1 October – 31 March.
func (p AbstractionPeriod) spansYearEnd() bool {
	if p.endMonth != p.startMonth {
		return p.endMonth < p.startMonth
	}
	return p.endDay < p.startDay
}

// windowsIn expands the recurring window into the linear date ranges that
// could intersect the given closed range. A window anchored in each calendar
// year touching the range is produced; spanning windows extend into the
// following year.
func (p AbstractionPeriod) windowsIn(r DateRange) []DateRange {
	if r.IsOpen() {
		return nil
	}
	var windows []DateRange
	for year := r.Start().Year() - 1; year <= r.End().Year(); year++ {
		start := Date(year, p.startMonth, p.startDay)
		endYear := year
		if p.spansYearEnd() {
			endYear = year + 1
		}
		end := Date(endYear, p.endMonth, p.endDay)
		if end.Before(start) {
			continue
		}
		windows = append(windows, MustDateRange(start, end))
	}
	return windows
}

// DaysIn returns the number of days in the intersection of the recurring
// window with the given closed range. This is the core of billable-day and
// total-day calculation; the result is always a non-negative integer no
// larger than the range's own day count.
func (p AbstractionPeriod) DaysIn(r DateRange) int {
	days := 0
	for _, window := range p.windowsIn(r) {
		if overlap, ok := window.Intersection(r); ok {
			days += overlap.Days()
		}
	}
	return days
}

// BillableDays returns the chargeable days within the charge period.
func (p AbstractionPeriod) BillableDays(chargePeriod DateRange) int {
	return p.DaysIn(chargePeriod)
}

// AuthorisedDays returns the abstraction days within a full financial year,
// used as the pro-ration denominator.
func (p AbstractionPeriod) AuthorisedDays(fy FinancialYear) int {
	return p.DaysIn(fy.Range())
}

// summer return season window is 1 April – 31 October.
var summerWindow = AbstractionPeriod{startDay: 1, startMonth: time.April, endDay: 31, endMonth: time.October}

// IsSummer classifies the period as a summer abstraction: the whole window
// must fall within 1 April – 31 October of a single year.
func (p AbstractionPeriod) IsSummer() bool {
	if p.spansYearEnd() {
		return false
	}
	afterStart := p.startMonth > summerWindow.startMonth ||
		(p.startMonth == summerWindow.startMonth && p.startDay >= summerWindow.startDay)
	beforeEnd := p.endMonth < summerWindow.endMonth ||
		(p.endMonth == summerWindow.endMonth && p.endDay <= summerWindow.endDay)
	return afterStart && beforeEnd
}

// Equal returns true when both periods have identical recurring bounds.
func (p AbstractionPeriod) Equal(other AbstractionPeriod) bool {
	return p == other
}

// String renders the period as e.g. "1 Oct – 31 Mar".
func (p AbstractionPeriod) String() string {
	return fmt.Sprintf("%d %s – %d %s",
		p.startDay, p.startMonth.String()[:3], p.endDay, p.endMonth.String()[:3])
}
