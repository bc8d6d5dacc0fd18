package http

import (
	"net/http"

	"ricorrenze/internal/core"
)

// handleMonths renders every month with at least one active expense,
// optionally limited to ?from=YYYY-MM&to=YYYY-MM.
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	from, err := parseOptionalMonth(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseOptionalMonth(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups := s.store.Groups(core.GroupOptions{From: from, To: to})
	out := make([]monthView, 0, len(groups))
	for _, g := range groups {
		out = append(out, newMonthView(g, noDue))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCurrentMonth renders the current month, empty when nothing is billed.
func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	now := s.now()
	current := core.MonthOf(now)
	group := core.MonthGroup{Month: current, Expenses: []core.Expense{}}
	if groups := s.store.Groups(core.GroupOptions{From: current, To: current}); len(groups) == 1 {
		group = groups[0]
	}
	writeJSON(w, http.StatusOK, newMonthView(group, now))
}
