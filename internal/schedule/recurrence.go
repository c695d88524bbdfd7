package schedule

import "time"

// Next computes the next occurrence of pattern after from.
//
// DAILY adds one day and WEEKLY seven; both preserve the wall-clock time.
// MONTHLY advances one calendar month, clamping the day-of-month to the
// last valid day of the target month (Jan 31 -> Feb 28, or Feb 29 in a
// leap year). The second return is false for an empty or unrecognized
// pattern, in which case the schedule produces no further occurrences.
func Next(pattern string, from time.Time) (time.Time, bool) {
	switch pattern {
	case PatternDaily:
		return from.AddDate(0, 0, 1), true
	case PatternWeekly:
		return from.AddDate(0, 0, 7), true
	case PatternMonthly:
		return addMonthClamped(from), true
	default:
		return time.Time{}, false
	}
}

func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	// First of the target month, then clamp the day. time.Date normalizes
	// month 13 into January of the next year for us.
	first := time.Date(y, m+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
