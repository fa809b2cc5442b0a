// Package calendar answers whether a plan is expected to run on a
// given date, from its 4-digit frequency code, and infers reference
// dates for rows that arrive without one.
package calendar

import "time"

// cadence classifies a frequency code into one of the contract's
// cadence families.
type cadence struct {
	// weekdays, when non-nil, restricts execution to these days of
	// week (time.Weekday values).
	weekdays map[time.Weekday]bool
	// monthDays, when non-nil, restricts execution to these days of
	// month.
	monthDays map[int]bool
	// months, when non-nil, additionally restricts to these months.
	months map[time.Month]bool
	// daily short-circuits everything: expected every day.
	daily bool
}

func weekdaySet(days ...time.Weekday) map[time.Weekday]bool {
	m := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		m[d] = true
	}
	return m
}

// frequencies maps every known contract frequency code to its cadence.
// This table is the single source of truth for expected-execution; no
// other package re-derives cadence rules. Loaded once, never mutated.
var frequencies = map[string]cadence{
	// Daily family: street sweeping and collection circuits that run
	// every day regardless of weekday, one code per operational slot.
	"0100": {daily: true},
	"0101": {daily: true},
	"0102": {daily: true},
	"0103": {daily: true},
	"0104": {daily: true},
	"0105": {daily: true},
	"0106": {daily: true},
	"0107": {daily: true},

	// Alternating three-weekday circuits.
	"0201": {weekdays: weekdaySet(time.Monday, time.Wednesday, time.Friday)},
	"0202": {weekdays: weekdaySet(time.Tuesday, time.Thursday, time.Saturday)},

	// Twice-a-week weekday pairs.
	"0301": {weekdays: weekdaySet(time.Monday, time.Thursday)},
	"0302": {weekdays: weekdaySet(time.Tuesday, time.Friday)},
	"0303": {weekdays: weekdaySet(time.Wednesday, time.Saturday)},

	// Weekly, one code per weekday (0401 = Sunday ... 0407 = Saturday).
	"0401": {weekdays: weekdaySet(time.Sunday)},
	"0402": {weekdays: weekdaySet(time.Monday)},
	"0403": {weekdays: weekdaySet(time.Tuesday)},
	"0404": {weekdays: weekdaySet(time.Wednesday)},
	"0405": {weekdays: weekdaySet(time.Thursday)},
	"0406": {weekdays: weekdaySet(time.Friday)},
	"0407": {weekdays: weekdaySet(time.Saturday)},

	// Semi-monthly: the 1st and the 15th.
	"0500": {monthDays: map[int]bool{1: true, 15: true}},

	// Monthly and sparser cadences, all pinned to the 1st.
	"0600": {monthDays: map[int]bool{1: true}},
	"0700": {monthDays: map[int]bool{1: true}, months: monthSet(time.January, time.March, time.May, time.July, time.September, time.November)},
	"0800": {monthDays: map[int]bool{1: true}, months: monthSet(time.January, time.April, time.July, time.October)},
	"0900": {monthDays: map[int]bool{1: true}, months: monthSet(time.January, time.May, time.September)},
	"1000": {monthDays: map[int]bool{1: true}, months: monthSet(time.January, time.July)},
}

func monthSet(months ...time.Month) map[time.Month]bool {
	m := make(map[time.Month]bool, len(months))
	for _, mo := range months {
		m[mo] = true
	}
	return m
}

// IsExpected reports whether a plan with the given frequency code is
// expected to run on date. Unknown codes are never expected.
func IsExpected(freq string, date time.Time) bool {
	c, ok := frequencies[freq]
	if !ok {
		return false
	}
	if c.daily {
		return true
	}
	if c.weekdays != nil {
		return c.weekdays[date.Weekday()]
	}
	if c.monthDays != nil {
		if !c.monthDays[date.Day()] {
			return false
		}
		if c.months != nil {
			return c.months[date.Month()]
		}
		return true
	}
	return false
}

// KnownFrequency reports whether freq is a defined contract code.
func KnownFrequency(freq string) bool {
	_, ok := frequencies[freq]
	return ok
}
