package valueobject

import (
	"fmt"
	"time"
)

// FinancialYear identifies a 1 April – 31 March accounting period by the
// calendar year in which it ends. Immutable value type.
type FinancialYear struct {
	yearEnding int
}

// NewFinancialYear creates a financial year from its ending calendar year.
func NewFinancialYear(yearEnding int) FinancialYear {
	return FinancialYear{yearEnding: yearEnding}
}

// YearEnding returns the calendar year in which the financial year ends.
func (fy FinancialYear) YearEnding() int {
	return fy.yearEnding
}

// Start returns 1 April of the preceding calendar year.
func (fy FinancialYear) Start() time.Time {
	return Date(fy.yearEnding-1, time.April, 1)
}

// End returns 31 March of the ending calendar year.
func (fy FinancialYear) End() time.Time {
	return Date(fy.yearEnding, time.March, 31)
}

// Range returns the financial year as a closed date range.
func (fy FinancialYear) Range() DateRange {
	return MustDateRange(fy.Start(), fy.End())
}

// Includes returns true when the date falls within the financial year.
func (fy FinancialYear) Includes(t time.Time) bool {
	return fy.Range().Includes(t)
}

// Next returns the following financial year.
func (fy FinancialYear) Next() FinancialYear {
	return FinancialYear{yearEnding: fy.yearEnding + 1}
}

// FinancialYearOf returns the financial year containing the given date.
func FinancialYearOf(t time.Time) FinancialYear {
	t = Truncate(t)
	if t.Month() >= time.April {
		return FinancialYear{yearEnding: t.Year() + 1}
	}
	return FinancialYear{yearEnding: t.Year()}
}

// FinancialYearsBetween returns the inclusive sequence of financial years
// from the one ending in from to the one ending in to.
func FinancialYearsBetween(from, to int) []FinancialYear {
	if to < from {
		return nil
	}
	years := make([]FinancialYear, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, NewFinancialYear(y))
	}
	return years
}

// String renders the financial year as e.g. "2021-22".
func (fy FinancialYear) String() string {
	return fmt.Sprintf("%d-%02d", fy.yearEnding-1, fy.yearEnding%100)
}
