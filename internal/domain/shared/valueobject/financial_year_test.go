package valueobject

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFinancialYear(t *testing.T) {
	fy := NewFinancialYear(2022)

	assert.Equal(t, 2022, fy.YearEnding())
	assert.Equal(t, Date(2021, time.April, 1), fy.Start())
	assert.Equal(t, Date(2022, time.March, 31), fy.End())
	assert.Equal(t, 365, fy.Range().Days())
	assert.Equal(t, "2021-22", fy.String())
}

func TestFinancialYearOf(t *testing.T) {
	tests := []struct {
		date       time.Time
		yearEnding int
	}{
		{Date(2021, time.April, 1), 2022},
		{Date(2021, time.March, 31), 2021},
		{Date(2021, time.December, 25), 2022},
		{Date(2022, time.January, 1), 2022},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.yearEnding, FinancialYearOf(tt.date).YearEnding(),
			"financial year of %s", tt.date.Format(time.DateOnly))
	}
}

func TestFinancialYearsBetween(t *testing.T) {
	t.Run("inclusive sequence", func(t *testing.T) {
		years := FinancialYearsBetween(2020, 2022)

		assert.Len(t, years, 3)
		assert.Equal(t, 2020, years[0].YearEnding())
		assert.Equal(t, 2022, years[2].YearEnding())
	})

	t.Run("single year", func(t *testing.T) {
		years := FinancialYearsBetween(2022, 2022)
		assert.Len(t, years, 1)
	})

	t.Run("inverted bounds yield nothing", func(t *testing.T) {
		assert.Empty(t, FinancialYearsBetween(2022, 2020))
	})
}
