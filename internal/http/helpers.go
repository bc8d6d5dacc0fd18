package http

import (
	"fmt"
	"strconv"
	"strings"

	"ricorrenze/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseID parses an expense id from a query or form value.
func parseID(s string) (int64, error) {
	s = sanitizeInput(s)
	if s == "" {
		return 0, fmt.Errorf("missing id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseOptionalMonth parses a YYYY-MM query value; empty means unbounded.
func parseOptionalMonth(s string) (core.MonthKey, error) {
	s = sanitizeInput(s)
	if s == "" {
		return "", nil
	}
	return core.ParseMonthKey(s)
}

// monthLabel renders a month heading such as "2024年01月".
func monthLabel(m core.MonthKey) string {
	year, month, ok := strings.Cut(m.String(), "-")
	if !ok {
		return m.String()
	}
	return year + "年" + month + "月"
}
