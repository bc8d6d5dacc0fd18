package http

import (
	"errors"
	"net/http"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
	"ricorrenze/internal/services"
)

// handleExpenses lists (GET), creates or updates (POST) and deletes
// (DELETE ?id=) expenses.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleSubmitExpense(w, r)
	case http.MethodDelete:
		s.handleDeleteExpense(w, r)
	default:
		requireMethod(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list := s.store.List()
	out := make([]expenseView, len(list))
	for i, e := range list {
		out[i] = newExpenseView(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSubmitExpense creates a record, or updates the one named by ?edit=.
func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	var session *services.EditSession
	if v := r.URL.Query().Get("edit"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session = &services.EditSession{ID: id}
	}

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Malformed expense body", log.NewFields().
			WithErrorType(log.ErrorTypeBadRequest).
			WithError(err).
			ToSlice()...)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	in, err := ParseExpenseInput(parser)
	if err != nil {
		writeMutation(w, r, mutationResponse{}, err)
		return
	}

	e, err := s.store.Submit(r.Context(), session, in)
	resp := mutationResponse{Message: "Expense added"}
	if session != nil {
		resp.Message = "Expense updated"
	}
	if err == nil || isPersistenceError(err) {
		view := newExpenseView(e)
		resp.Expense = &view
	}
	writeMutation(w, r, resp, err)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.store.DeleteAll(r.Context(), id)
	writeMutation(w, r, mutationResponse{Message: "Expense deleted"}, err)
}

// handleExpenseItem returns one record by ?id=.
func (s *Server) handleExpenseItem(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, (&core.NotFoundError{ID: id}).Error())
		return
	}
	writeJSON(w, http.StatusOK, newExpenseView(e))
}

// handleBeginEdit returns the record to prefill an edit form with. The
// client submits the edit through POST /api/expenses?edit=ID.
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.store.BeginEdit(id)
	if err != nil {
		writeMutation(w, r, mutationResponse{}, err)
		return
	}
	e, ok := s.store.Get(session.ID)
	if !ok {
		writeMutation(w, r, mutationResponse{}, &core.NotFoundError{ID: session.ID})
		return
	}
	view := newExpenseView(e)
	writeMutation(w, r, mutationResponse{
		Expense: &view,
		Editing: session.ID,
		Message: "Editing expense",
	}, nil)
}

// handleHideMonth removes one month's occurrence: ?id=&month=YYYY-MM.
func (s *Server) handleHideMonth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	q := r.URL.Query()
	id, err := parseID(q.Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	month, err := core.ParseMonthKey(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.store.HideMonth(r.Context(), id, month)
	writeMutation(w, r, mutationResponse{Message: "Month removed"}, err)
}
