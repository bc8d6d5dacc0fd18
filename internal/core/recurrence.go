package core

import "time"

// ExpandRange returns every month key from the first date's month through the
// end date (or the first date when there is none), ignoring hidden months.
//
// The cursor always sits on day 1 so that a 31st never rolls over into the
// month after next. An end date before the first date's month yields nothing.
func ExpandRange(e Expense) []MonthKey {
	if e.FirstDate.IsEmpty() {
		return nil
	}
	rangeEnd := e.EndDate.Time
	if e.EndDate.IsEmpty() {
		rangeEnd = e.FirstDate.Time
	}

	var months []MonthKey
	for current := firstOfMonth(e.FirstDate.Time); !current.After(rangeEnd); current = nextMonth(current) {
		months = append(months, MonthOf(current))
	}
	return months
}

// Expand returns the ordered month keys in which e is active and not hidden.
func Expand(e Expense) []MonthKey {
	all := ExpandRange(e)
	if len(e.HiddenMonths) == 0 {
		return all
	}
	active := make([]MonthKey, 0, len(all))
	for _, m := range all {
		if !e.IsHidden(m) {
			active = append(active, m)
		}
	}
	return active
}

// InRange reports whether month lies inside the expansion range of e.
func (e Expense) InRange(month MonthKey) bool {
	for _, m := range ExpandRange(e) {
		if m == month {
			return true
		}
	}
	return false
}

// ActiveIn reports whether e is billed in month.
func (e Expense) ActiveIn(month MonthKey) bool {
	return e.InRange(month) && !e.IsHidden(month)
}

func nextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
