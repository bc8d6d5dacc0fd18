package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthKeyLayout is the time layout of a MonthKey.
const MonthKeyLayout = "2006-01"

// MonthKey identifies a calendar month as "YYYY-MM". Zero-padded keys sort
// chronologically as plain strings.
type MonthKey string

// MonthOf returns the key of the month t falls in.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(MonthKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// Start returns the first day of the month at midnight UTC.
func (k MonthKey) Start() time.Time {
	t, err := time.Parse(MonthKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Year and Month split the key; both are zero for an invalid key.
func (k MonthKey) Year() int {
	if t := k.Start(); !t.IsZero() {
		return t.Year()
	}
	return 0
}

func (k MonthKey) Month() int {
	if t := k.Start(); !t.IsZero() {
		return int(t.Month())
	}
	return 0
}

func (k MonthKey) String() string {
	return string(k)
}

// Next returns the following month.
func (k MonthKey) Next() MonthKey {
	return MonthOf(k.Start().AddDate(0, 1, 0))
}

// firstOfMonth truncates t to day 1 of its month.
func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
