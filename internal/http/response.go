package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
	"ricorrenze/internal/services"
)

// expenseView is one record as rendered inside a month or the list.
type expenseView struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Amount       core.Money      `json:"amount"`
	FirstDate    core.Date       `json:"firstDate"`
	EndDate      core.Date       `json:"endDate"`
	HiddenMonths []core.MonthKey `json:"hiddenMonths"`
	Day          int             `json:"day"`
	Recurring    bool            `json:"recurring"`
	// Due is only set for the current month.
	Due *bool `json:"due,omitempty"`
}

type monthView struct {
	Month    core.MonthKey `json:"month"`
	Label    string        `json:"label"`
	Expenses []expenseView `json:"expenses"`
	Total    core.Money    `json:"total"`
}

type mutationResponse struct {
	Expense *expenseView `json:"expense,omitempty"`
	Editing int64        `json:"editing,omitempty"`
	Message string       `json:"message,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

type fieldView struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string      `json:"error"`
	Fields []fieldView `json:"fields,omitempty"`
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:           e.ID,
		Name:         e.Name,
		Amount:       e.Amount,
		FirstDate:    e.FirstDate,
		EndDate:      e.EndDate,
		HiddenMonths: e.HiddenMonths,
		Day:          e.BillingDay(),
		Recurring:    e.IsRecurring(),
	}
}

// newMonthView renders g. A non-zero now marks which items have come due.
func newMonthView(g core.MonthGroup, now time.Time) monthView {
	items := make([]expenseView, len(g.Expenses))
	for i, e := range g.Expenses {
		items[i] = newExpenseView(e)
		if !now.IsZero() {
			due := services.IsDue(e, now)
			items[i].Due = &due
		}
	}
	return monthView{
		Month:    g.Month,
		Label:    monthLabel(g.Month),
		Expenses: items,
		Total:    g.Total,
	}
}

// noDue renders a month without due markers.
var noDue time.Time

func isPersistenceError(err error) bool {
	return errors.Is(err, core.ErrPersistence)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeMutation renders the outcome of a store mutation. A persistence
// failure still answers 200: the change is applied in memory and the
// response carries a warning.
func writeMutation(w http.ResponseWriter, r *http.Request, resp mutationResponse, err error) {
	logger := log.FromContext(r.Context())

	var ve *core.ValidationError
	var nf *core.NotFoundError
	var pe *core.PersistenceError

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &ve):
		fields := log.NewFields().WithErrorType(log.ErrorTypeValidation)
		fields["fields"] = ve.FieldNames()
		logger.InfoContext(r.Context(), "Rejected expense input", fields.ToSlice()...)
		writeValidationError(w, ve)
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &pe):
		logger.WarnContext(r.Context(), "Change applied but not persisted", log.NewFields().
			WithErrorType(log.ErrorTypePersistence).
			WithOperation(pe.Op).
			WithError(pe.Err).
			ToSlice()...)
		resp.Warning = "change applied but could not be saved"
		writeJSON(w, http.StatusOK, resp)
	default:
		logger.ErrorContext(r.Context(), "Unexpected store error", log.NewFields().
			WithErrorType(log.ErrorTypeInternal).
			WithError(err).
			ToSlice()...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeValidationError(w http.ResponseWriter, ve *core.ValidationError) {
	resp := errorResponse{Error: core.ErrValidation.Error()}
	for _, f := range ve.Fields {
		resp.Fields = append(resp.Fields, fieldView{Field: f.Field, Message: f.Err.Error()})
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}
