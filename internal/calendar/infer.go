package calendar

import "time"

// SearchWindowDays bounds the linear expected-date searches. Sparse
// cadences (quarterly, semiannual) go months between occurrences, so
// the scan has to reach well past a week; 120 days keeps it cheap
// while covering the defined codes. Treat this as configuration: a
// cadence with a longer inter-occurrence gap needs the bound raised
// or searches will return no date.
const SearchWindowDays = 120

// PreviousExpected walks backward from the day before from, at most
// SearchWindowDays days, and returns the most recent date on which
// freq is expected. Returns the zero time and false when none exists
// in the window.
func PreviousExpected(freq string, from time.Time) (time.Time, bool) {
	d := truncateDay(from)
	for i := 0; i < SearchWindowDays; i++ {
		d = d.AddDate(0, 0, -1)
		if IsExpected(freq, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// NextExpected walks forward from the day after from, at most
// SearchWindowDays days, and returns the first date on which freq is
// expected. Returns the zero time and false when none exists in the
// window.
func NextExpected(freq string, from time.Time) (time.Time, bool) {
	d := truncateDay(from)
	for i := 0; i < SearchWindowDays; i++ {
		d = d.AddDate(0, 0, 1)
		if IsExpected(freq, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// Nearest returns the candidate with the smallest absolute day
// distance to ref, provided that distance does not exceed
// maxDistanceDays. Equidistant candidates resolve to the first one
// encountered, so the caller's ordering decides ties.
func Nearest(ref time.Time, candidates []time.Time, maxDistanceDays int) (time.Time, bool) {
	refDay := truncateDay(ref)
	best := time.Time{}
	bestDist := maxDistanceDays + 1
	for _, c := range candidates {
		dist := dayDistance(refDay, truncateDay(c))
		if dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	if bestDist > maxDistanceDays {
		return time.Time{}, false
	}
	return best, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayDistance(a, b time.Time) int {
	d := int(a.Sub(b) / (24 * time.Hour))
	if d < 0 {
		return -d
	}
	return d
}
