// Package daterange resolves date strings into billing-window timestamps.
package daterange

import (
	"fmt"
	"time"
)

// DayInSecs is the last second of a day relative to its first second.
const DayInSecs = 86399 // 24 * 60 * 60 - 1

const dateFormat = "20060102"

// ToTimestamp parses a YYYYMMDD date string in the given timezone and
// returns the Unix timestamp of the beginning of that day.
func ToTimestamp(dateString, tz string) (int64, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	day, err := time.ParseInLocation(dateFormat, dateString, loc)
	if err != nil {
		return 0, fmt.Errorf("not a valid date string %q: %w", dateString, err)
	}
	return day.Unix(), nil
}

// Range converts start and end date strings to a window whose end is the
// inclusive last second of the end day.
func Range(start, end, tz string) (int64, int64, error) {
	minDate, err := ToTimestamp(start, tz)
	if err != nil {
		return 0, 0, err
	}
	maxDate, err := ToTimestamp(end, tz)
	if err != nil {
		return 0, 0, err
	}
	return minDate, maxDate + DayInSecs, nil
}

// MonthRange returns the window covering a whole month of a year.
func MonthRange(year, month int, tz string) (int64, int64, error) {
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month must be in 1..12, got %d", month)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return Range(first.Format(dateFormat), last.Format(dateFormat), tz)
}
