// Package services provides the expense store and the business rules built
// on top of it.
//
// This file answers "has this month's occurrence come due yet", the check the
// presentation layer uses to mark current-month items as paid or upcoming.
package services

import (
	"time"

	"ricorrenze/internal/core"
)

// DueDate returns the calendar date of e's occurrence in month. Billing days
// past the end of a short month fall on its last day. ok is false when e is
// not active in month.
func DueDate(e core.Expense, month core.MonthKey) (due time.Time, ok bool) {
	if !e.ActiveIn(month) {
		return time.Time{}, false
	}
	start := month.Start()
	lastDay := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := e.BillingDay()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, time.UTC), true
}

// IsDue returns true if e is billed in now's month and its day has been reached.
func IsDue(e core.Expense, now time.Time) bool {
	due, ok := DueDate(e, core.MonthOf(now))
	if !ok {
		return false
	}
	return now.Day() >= due.Day()
}
