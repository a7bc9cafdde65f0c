package market

import "time"

const sessionLayout = "2006-01-02"

// PreviousSession returns the calendar day of the most recent completed
// trading session relative to now. Weekends are skipped; holidays are not.
func PreviousSession(now time.Time) time.Time {
	back := 1
	switch now.Weekday() {
	case time.Monday:
		back = 3
	case time.Sunday:
		back = 2
	}
	d := now.AddDate(0, 0, -back)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
}

func SessionDate(t time.Time) string {
	return t.Format(sessionLayout)
}
