package access

import "time"

// DefaultValidityMonths is used when a request does not ask for a specific
// validity period.
const DefaultValidityMonths = 3

// addMonths advances t by n calendar months. "3 months" means three calendar
// months, not a fixed duration. When the source day does not exist in the
// target month the day is clamped to the month's last valid day
// (Jan 31 + 1 month = Feb 28/29), rather than letting the overflow spill
// into the following month.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, min, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// validityWindow computes the start/expiry pair for an approval happening at
// now, honoring the requested validity or the default.
func validityWindow(now time.Time, validityMonths *int) (start, expiry string) {
	months := DefaultValidityMonths
	if validityMonths != nil && *validityMonths > 0 {
		months = *validityMonths
	}
	return now.UTC().Format(time.RFC3339), addMonths(now.UTC(), months).Format(time.RFC3339)
}
