// Package calendar implements the date arithmetic behind lease terms and rent
// due dates. All helpers preserve the time-of-day and location of their input.
package calendar

import (
	"fmt"
	"time"
)

// Unit is the unit of a lease duration.
type Unit string

const (
	Months Unit = "months"
	Years  Unit = "years"
)

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	return u == Months || u == Years
}

// Duration is a lease term such as "12 months" or "3 years".
type Duration struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

// Validate checks the duration is positive and uses a known unit.
func (d Duration) Validate() error {
	if d.Value <= 0 {
		return fmt.Errorf("duration value must be positive, got %d", d.Value)
	}
	if !d.Unit.Valid() {
		return fmt.Errorf("duration unit must be %q or %q, got %q", Months, Years, d.Unit)
	}
	return nil
}

// InMonths converts the duration to a number of months.
func (d Duration) InMonths() int {
	if d.Unit == Years {
		return d.Value * 12
	}
	return d.Value
}

func (d Duration) String() string {
	return fmt.Sprintf("%d %s", d.Value, d.Unit)
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths advances t by n months, clamping the day to the last valid day of
// the target month: Jan 31 + 1 month is Feb 28 (29 in leap years), not Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + n
	targetYear := year + floorDiv(total, 12)
	targetMonth := time.Month(floorMod(total, 12) + 1)
	if last := DaysIn(targetYear, targetMonth); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// AddDuration advances t by a lease duration using clamped month arithmetic.
func AddDuration(t time.Time, d Duration) time.Time {
	return AddMonths(t, d.InMonths())
}

// SnapDay moves t to the given day of its own month, clamped to the month
// length. Only the day changes; the month and year never move.
func SnapDay(t time.Time, day int) time.Time {
	year, month, _ := t.Date()
	if day < 1 {
		day = 1
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(year, month, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// StartOfDay truncates t to midnight in UTC.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return Date(year, month, day)
}

// MonthKey formats the year and month of t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// PastGrace reports whether due + graceDays is strictly before now.
func PastGrace(due time.Time, graceDays int, now time.Time) bool {
	return due.AddDate(0, 0, graceDays).Before(now)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
