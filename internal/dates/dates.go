// Package dates holds the calendar arithmetic shared by the availability
// rules, the CSV export, and the archival sweep.
package dates

import "time"

const (
	// DayLayout is the storage format for dates.
	DayLayout = "2006-01-02"
	// DisplayLayout is the user-facing date format.
	DisplayLayout = "01/02/2006"
	// ClockLayout is the storage format for times of day.
	ClockLayout = "15:04"
)

// Day truncates a time to midnight in its location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Bounds is a closed date range.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// WeekBounds returns the bounds of the week containing today. The week is
// anchored on the Sunday at or before today; the default bounds (-1, 6) run
// from the preceding Saturday through the following Saturday.
func WeekBounds(today time.Time, startBound, endBound int) Bounds {
	today = Day(today)
	sunday := today.AddDate(0, 0, -int(today.Weekday()))
	start := sunday.AddDate(0, 0, startBound)
	end := start.AddDate(0, 0, endBound-startBound)
	return Bounds{Start: start, End: end}
}

// WeekStart returns the archival boundary: the Saturday starting the current
// week.
func WeekStart(today time.Time) time.Time {
	return WeekBounds(today, -1, 6).Start
}

// MondayAtOrBefore returns the Monday at or before the given day.
func MondayAtOrBefore(t time.Time) time.Time {
	t = Day(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// NextMonday returns the Monday strictly after the given day.
func NextMonday(t time.Time) time.Time {
	return MondayAtOrBefore(Day(t).AddDate(0, 0, 7))
}
