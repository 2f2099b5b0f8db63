// Package interval holds the half-open time interval predicates and the
// location hierarchy expansion used by every conflict query.
package interval

import "time"

// Valid reports whether [start, end) is a non-degenerate interval.
func Valid(start, end time.Time) bool {
	return end.After(start)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
// Touching intervals do not overlap and a degenerate interval overlaps nothing.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !Valid(aStart, aEnd) || !Valid(bStart, bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Within reports whether [start, end) lies entirely inside [windowStart, windowEnd).
func Within(start, end, windowStart, windowEnd time.Time) bool {
	return !start.Before(windowStart) && !end.After(windowEnd)
}

// DayWindow converts an inclusive date range into the half-open datetime range
// [first 00:00, last+1 00:00) in loc.
func DayWindow(first, last time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	first = first.In(loc)
	last = last.In(loc)
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, end
}
