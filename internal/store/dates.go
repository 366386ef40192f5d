package store

import "time"

const dateLayout = "2006-01-02"

// Dates are ISO-8601 calendar strings and compare correctly as plain
// strings; these helpers exist for validity checks and day arithmetic.

func IsValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// DaysBetween returns the absolute day distance between two dates, or -1
// when either does not parse.
func DaysBetween(a, b string) int {
	ta, err := time.Parse(dateLayout, a)
	if err != nil {
		return -1
	}
	tb, err := time.Parse(dateLayout, b)
	if err != nil {
		return -1
	}
	d := ta.Sub(tb)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
