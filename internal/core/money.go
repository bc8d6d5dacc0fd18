// Amounts are exact decimals so that monthly totals never drift, whatever
// granularity the user enters.

package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact monetary amount. It serializes as a bare JSON number.
type Money struct {
	decimal.Decimal
}

// NewMoney returns a whole-unit amount.
func NewMoney(units int64) Money {
	return Money{Decimal: decimal.NewFromInt(units)}
}

// ParseAmount converts user input to Money.
//
// Only positive values are accepted; signs, empty strings and anything that
// is not a plain decimal number return ErrInvalidAmount.
//
// Examples:
//   ParseAmount("1000")  -> 1000, nil
//   ParseAmount("12.50") -> 12.5, nil
//   ParseAmount("0")     -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and numeric strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}
