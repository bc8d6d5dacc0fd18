// Package core provides the expense domain: money, dates, month keys,
// recurrence expansion and monthly grouping.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of persisted dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day in UTC. The zero value means "no date".
	Date struct {
		time.Time
	}

	// Expense is the only persisted entity.
	Expense struct {
		ID           int64      `json:"id"`
		Name         string     `json:"name"`
		Amount       Money      `json:"amount"`
		FirstDate    Date       `json:"firstDate"`
		EndDate      Date       `json:"endDate"`
		HiddenMonths []MonthKey `json:"hiddenMonths"`
	}

	// ExpenseInput carries the already-parsed fields of a create or update.
	ExpenseInput struct {
		Name      string
		Amount    Money
		FirstDate Date
		EndDate   Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (optional end dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the month key the date falls in.
func (d Date) MonthKey() MonthKey {
	return MonthOf(d.Time)
}

// MarshalJSON writes "YYYY-MM-DD", or null for the zero date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate reports every invalid field at once.
func (in ExpenseInput) Validate() error {
	var fields []FieldError
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Err: ErrEmptyName})
	}
	if err := in.Amount.Validate(); err != nil {
		fields = append(fields, FieldError{Field: "amount", Err: err})
	}
	if in.FirstDate.IsEmpty() {
		fields = append(fields, FieldError{Field: "firstDate", Err: ErrMissingFirstDate})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Input returns the editable fields of the record, e.g. to prefill a form.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Name:      e.Name,
		Amount:    e.Amount,
		FirstDate: e.FirstDate,
		EndDate:   e.EndDate,
	}
}

// BillingDay is the day of month shown for every occurrence.
func (e Expense) BillingDay() int {
	return e.FirstDate.Day()
}

// IsRecurring reports whether the record spans more than its first date.
func (e Expense) IsRecurring() bool {
	return !e.EndDate.IsEmpty() && !e.EndDate.Equal(e.FirstDate.Time)
}

// IsHidden reports whether month was individually removed.
func (e Expense) IsHidden(month MonthKey) bool {
	for _, h := range e.HiddenMonths {
		if h == month {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with e.
func (e Expense) Clone() Expense {
	out := e
	out.HiddenMonths = append([]MonthKey{}, e.HiddenMonths...)
	return out
}
